package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/muster"
	"github.com/aretw0/muster/pkg/adapters/redis"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func counter(t *testing.T) *muster.Engine {
	t.Helper()
	eng, err := muster.New(nodes.Tree(map[string]*domain.Definition{
		"count": nodes.Variable(5),
	}))
	require.NoError(t, err)
	return eng
}

// run starts b and waits until its subscription is live.
func run(t *testing.T, mr *miniredis.Miniredis, b *redis.Bridge, channel string, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] >= want
	}, 2*time.Second, 10*time.Millisecond)
}

func count(t *testing.T, eng *muster.Engine) any {
	t.Helper()
	result, err := eng.Resolve(context.Background(), nodes.Ref("count"))
	require.NoError(t, err)
	return domain.ValueOf(result)
}

func TestBridge_RelaysEvents(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	a, b := counter(t), counter(t)
	run(t, mr, redis.NewBridge(client, a), redis.DefaultChannel, 1)
	run(t, mr, redis.NewBridge(client, b), redis.DefaultChannel, 2)

	_, err := b.Resolve(ctx, nodes.Set(nodes.Ref("count"), 1))
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, b))

	a.Dispatch(domain.Event{Type: domain.EventReset})

	assert.Eventually(t, func() bool {
		return count(t, b) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_DoesNotEcho(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()
	const channel = "test:events"

	spy := client.Subscribe(ctx, channel)
	defer spy.Close()
	_, err := spy.Receive(ctx)
	require.NoError(t, err)

	a, b := counter(t), counter(t)
	run(t, mr, redis.NewBridge(client, a, redis.WithChannel(channel)), channel, 2)
	run(t, mr, redis.NewBridge(client, b, redis.WithChannel(channel)), channel, 3)

	a.Dispatch(domain.Event{Type: "ping", Payload: map[string]any{"n": 1}})

	var received []map[string]any
	timeout := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case msg := <-spy.Channel():
			var env map[string]any
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
			received = append(received, env)
		case <-timeout:
			break loop
		}
	}

	require.Len(t, received, 1)
	assert.Equal(t, "ping", received[0]["type"])
	assert.Equal(t, map[string]any{"n": float64(1)}, received[0]["payload"])
	assert.NotEmpty(t, received[0]["source"])
}

func TestBridge_Publish(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	eng := counter(t)
	listened := make(chan domain.Event, 4)
	eng.OnEvent(func(ev domain.Event) { listened <- ev })

	bridge := redis.NewBridge(client, counter(t))
	run(t, mr, redis.NewBridge(client, eng), redis.DefaultChannel, 1)

	t.Run("Dispatches Published Events", func(t *testing.T) {
		require.NoError(t, bridge.Publish(ctx, domain.Event{Type: "hello", Payload: "world"}))

		select {
		case ev := <-listened:
			assert.Equal(t, domain.Event{Type: "hello", Payload: "world"}, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("event was not dispatched")
		}
	})

	t.Run("Skips Undecodable Messages", func(t *testing.T) {
		require.NoError(t, client.Publish(ctx, redis.DefaultChannel, "not json").Err())
		require.NoError(t, bridge.Publish(ctx, domain.Event{Type: "after"}))

		select {
		case ev := <-listened:
			assert.Equal(t, "after", ev.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("event was not dispatched")
		}
	})

	t.Run("Rejects Unencodable Payloads", func(t *testing.T) {
		err := bridge.Publish(ctx, domain.Event{Type: "bad", Payload: func() {}})
		assert.ErrorContains(t, err, `encode event "bad"`)
	})
}

func TestBridge_SubscribeFailure(t *testing.T) {
	client := backend.NewClient(&backend.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	err := redis.NewBridge(client, counter(t)).Run(context.Background())
	assert.Error(t, err)
}
