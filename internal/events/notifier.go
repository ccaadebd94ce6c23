package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Notifier publishes change events without blocking the caller. Failures are
// logged and never reach the request that caused the change.
type Notifier struct {
	bus    Bus
	logger *zap.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

func NewNotifier(bus Bus, logger *zap.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger, now: time.Now}
}

// Publish emits a change on topic <channel>.<change> in the background.
func (n *Notifier) Publish(ctx context.Context, channel string, change ChangeType, newValue, oldValue, data any) {
	event := ChangeEvent{
		Type:       change,
		New:        newValue,
		Old:        oldValue,
		Data:       data,
		OccurredAt: n.now().UTC(),
	}
	topic := Topic(channel, change)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := n.bus.Publish(pctx, topic, event); err != nil {
			n.logger.Error("Failed to publish change event", zap.String("topic", topic), zap.Error(err))
			return
		}
		n.logger.Debug("Change event published", zap.String("topic", topic))
	}()
}

// Close waits for in-flight publishes.
func (n *Notifier) Close() {
	n.wg.Wait()
}
