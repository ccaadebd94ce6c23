package cache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"catalog-service/internal/events"
)

type productRef struct {
	ID   string `json:"id"`
	Base string `json:"base"`
}

type productChange struct {
	Type events.ChangeType `json:"type"`
	New  *productRef       `json:"new"`
	Old  *productRef       `json:"old"`
}

// ProductInvalidator drops cached products named by product change events.
// A variant change also drops its base, whose variants list may have moved.
type ProductInvalidator struct {
	bucket *Bucket
	logger *zap.Logger
}

func NewProductInvalidator(bucket *Bucket, logger *zap.Logger) *ProductInvalidator {
	return &ProductInvalidator{bucket: bucket, logger: logger}
}

// Subscribe attaches the invalidator to every change published on channel.
func (i *ProductInvalidator) Subscribe(ctx context.Context, bus events.Bus, channel string) (events.Subscription, error) {
	return bus.Subscribe(ctx, channel+".*", i.Handle)
}

func (i *ProductInvalidator) Handle(ctx context.Context, topic string, payload []byte) {
	var change productChange
	if err := json.Unmarshal(payload, &change); err != nil {
		i.logger.Warn("Ignoring undecodable change event", zap.String("topic", topic), zap.Error(err))
		return
	}

	keys := []string{}
	for _, ref := range []*productRef{change.New, change.Old} {
		if ref != nil {
			keys = append(keys, ref.ID, ref.Base)
		}
	}

	if err := i.bucket.Drop(ctx, keys...); err != nil {
		i.logger.Error("Failed to invalidate cached products", zap.String("topic", topic), zap.Error(err))
		return
	}
	i.logger.Debug("Cached products invalidated", zap.String("topic", topic), zap.Strings("keys", keys))
}
