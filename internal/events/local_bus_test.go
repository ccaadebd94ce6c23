package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalBus_DeliversMatchingTopics(t *testing.T) {
	bus := NewLocalBus(zap.NewNop())
	ctx := context.Background()

	var got []delivery
	sub, err := bus.Subscribe(ctx, "products.*", func(_ context.Context, topic string, payload []byte) {
		got = append(got, delivery{topic: topic, payload: payload})
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, Topic("products", ChangeRemove), ChangeEvent{Type: ChangeRemove}))
	require.NoError(t, bus.Publish(ctx, "categories.CREATE", ChangeEvent{Type: ChangeCreate}))

	require.Len(t, got, 1)
	assert.Equal(t, "products.REMOVE", got[0].topic)

	var event ChangeEvent
	require.NoError(t, json.Unmarshal(got[0].payload, &event))
	assert.Equal(t, ChangeRemove, event.Type)

	require.NoError(t, sub.Close())
	require.NoError(t, bus.Publish(ctx, "products.CREATE", ChangeEvent{Type: ChangeCreate}))
	assert.Len(t, got, 1)
}

func TestLocalBus_RejectsMalformedPattern(t *testing.T) {
	_, err := NewLocalBus(zap.NewNop()).Subscribe(context.Background(), "products.[", func(context.Context, string, []byte) {})
	assert.Error(t, err)
}
