package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_LocalFallback(t *testing.T) {
	c, err := NewCache(Config{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Get(ctx, "nope")
	assert.True(t, IsNotFound(err))
	all, err := c.HGetAll(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNewPubSub_LocalAdapter(t *testing.T) {
	ps, err := NewPubSub(Config{LocalPubSubBuf: 4})
	require.NoError(t, err)

	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "quest.progress")
	require.NoError(t, err)

	require.NoError(t, ps.Publish(ctx, "quest.progress", `{"quest_id":"miner"}`))
	select {
	case m := <-ch:
		assert.Equal(t, &Message{Channel: "quest.progress", Payload: `{"quest_id":"miner"}`}, m)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open, "adapter channel closes after cancel")
}

func TestNewPubSub_ContextEndStopsUnreadSubscription(t *testing.T) {
	ps, err := NewPubSub(Config{LocalPubSubBuf: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := ps.Subscribe(ctx, "quest.progress")
	require.NoError(t, err)

	// Nobody reads while the buffer fills up.
	for i := 0; i < 4; i++ {
		_ = ps.Publish(context.Background(), "quest.progress", "x")
	}
	cancel()

	closed := make(chan struct{})
	go func() {
		for range ch {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("subscription still open after its context ended")
	}
}
