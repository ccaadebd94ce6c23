package events

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"go.uber.org/zap"
)

// LocalBus is an in-process Bus for runs without redis. Patterns use the
// same glob syntax as redis PSUBSCRIBE. Delivery is synchronous.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[*localSubscription]struct{}
	logger *zap.Logger
}

func NewLocalBus(logger *zap.Logger) *LocalBus {
	return &LocalBus{subs: make(map[*localSubscription]struct{}), logger: logger}
}

func (b *LocalBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}

	b.mu.RLock()
	matched := make([]*localSubscription, 0, len(b.subs))
	for sub := range b.subs {
		if ok, _ := path.Match(sub.pattern, topic); ok {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		sub.handler(ctx, topic, data)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, pattern string, handler Handler) (Subscription, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	sub := &localSubscription{bus: b, pattern: pattern, handler: handler}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	b.logger.Info("Subscribed to local bus", zap.String("pattern", pattern))
	return sub, nil
}

type localSubscription struct {
	bus     *LocalBus
	pattern string
	handler Handler
}

func (s *localSubscription) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	return nil
}
