package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingBus struct {
	mu       sync.Mutex
	messages map[string][]byte
	err      error
	release  chan struct{}
}

func newRecordingBus() *recordingBus {
	return &recordingBus{messages: make(map[string][]byte)}
}

func (b *recordingBus) Publish(ctx context.Context, topic string, payload any) error {
	if b.release != nil {
		<-b.release
	}
	if b.err != nil {
		return b.err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[topic] = data
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string, Handler) (Subscription, error) {
	return nil, errors.New("not supported")
}

func TestNotifier_PublishesOnChannelTopic(t *testing.T) {
	bus := newRecordingBus()
	n := NewNotifier(bus, zap.NewNop())

	n.Publish(context.Background(), "products", ChangeUpdate,
		map[string]string{"id": "p2"}, map[string]string{"id": "p1"}, map[string]string{"title": "x"})
	n.Close()

	raw, ok := bus.messages["products.UPDATE"]
	require.True(t, ok)

	var got struct {
		Type ChangeType        `json:"type"`
		New  map[string]string `json:"new"`
		Old  map[string]string `json:"old"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, ChangeUpdate, got.Type)
	assert.Equal(t, "p2", got.New["id"])
	assert.Equal(t, "p1", got.Old["id"])
	assert.Equal(t, "x", got.Data["title"])
}

func TestNotifier_DoesNotBlockCaller(t *testing.T) {
	bus := newRecordingBus()
	bus.release = make(chan struct{})
	n := NewNotifier(bus, zap.NewNop())

	done := make(chan struct{})
	go func() {
		n.Publish(context.Background(), "products", ChangeCreate, nil, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow bus")
	}

	close(bus.release)
	n.Close()
	assert.Contains(t, bus.messages, "products.CREATE")
}

func TestNotifier_SurvivesCancelledRequestContext(t *testing.T) {
	bus := newRecordingBus()
	n := NewNotifier(bus, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Publish(ctx, "products", ChangeRemove, nil, map[string]string{"id": "p1"}, nil)
	n.Close()

	assert.Contains(t, bus.messages, "products.REMOVE")
}

func TestNotifier_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := newRecordingBus()
	bus.err = errors.New("bus down")
	n := NewNotifier(bus, zap.New(core))

	n.Publish(context.Background(), "products", ChangeCreate, nil, nil, nil)
	n.Close()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Failed to publish change event", entry.Message)
	assert.Equal(t, "products.CREATE", entry.ContextMap()["topic"])
}
