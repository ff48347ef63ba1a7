// Package redis connects the event buses of engines in different processes
// through a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/muster/internal/logging"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "muster:events"

const outboxSize = 256

// ErrClosed is returned by Run when the subscription channel closes.
var ErrClosed = errors.New("redis subscription closed")

// Engine is the event surface of the muster engine.
type Engine interface {
	Dispatch(ev domain.Event)
	OnEvent(fn func(domain.Event)) (remove func())
}

// envelope is the wire form of an event on the channel.
type envelope struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Bridge publishes the events of an engine's root scope to a channel and
// dispatches events published by other bridges into it.
type Bridge struct {
	client  *backend.Client
	engine  Engine
	channel string
	source  string
	logger  *slog.Logger

	mu     sync.Mutex
	echoes map[string]int
}

// Option configures the Bridge.
type Option func(*Bridge)

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) Option {
	return func(b *Bridge) {
		b.channel = channel
	}
}

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a bridge between engine and the Redis behind client.
func NewBridge(client *backend.Client, engine Engine, opts ...Option) *Bridge {
	b := &Bridge{
		client:  client,
		engine:  engine,
		channel: DefaultChannel,
		source:  uuid.NewString(),
		logger:  logging.NewNop(),
		echoes:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends ev to the channel without dispatching it locally.
func (b *Bridge) Publish(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(envelope{Source: b.source, Type: ev.Type, Payload: ev.Payload})
	if err != nil {
		return fmt.Errorf("encode event %q: %w", ev.Type, err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event %q: %w", ev.Type, err)
	}
	return nil
}

// Run relays events in both directions until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("Event bridge subscribed", "channel", b.channel, "source", b.source)

	outbox := make(chan domain.Event, outboxSize)
	remove := b.engine.OnEvent(func(ev domain.Event) {
		if b.isEcho(ev) {
			return
		}
		select {
		case outbox <- ev:
		default:
			b.logger.Warn("Event bridge outbox full, dropping event", "type", ev.Type)
		}
	})
	defer remove()

	incoming := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-outbox:
			if err := b.Publish(ctx, ev); err != nil {
				b.logger.Error("Event publish failed", "error", err)
			}
		case msg, ok := <-incoming:
			if !ok {
				return ErrClosed
			}
			b.receive(msg.Payload)
		}
	}
}

func (b *Bridge) receive(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("Undecodable event", "channel", b.channel, "error", err)
		return
	}
	if env.Source == b.source || env.Type == "" {
		return
	}
	ev := domain.Event{Type: env.Type, Payload: env.Payload}
	b.mu.Lock()
	b.echoes[echoKey(ev)]++
	b.mu.Unlock()
	b.engine.Dispatch(ev)
}

// isEcho reports whether ev is the local delivery of an event received from
// the channel, consuming the record of it.
func (b *Bridge) isEcho(ev domain.Event) bool {
	key := echoKey(ev)
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.echoes[key]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(b.echoes, key)
	} else {
		b.echoes[key] = n - 1
	}
	return true
}

func echoKey(ev domain.Event) string {
	payload, _ := json.Marshal(ev.Payload)
	return ev.Type + "\x00" + string(payload)
}
