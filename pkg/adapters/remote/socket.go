package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/muster/internal/logging"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/registry"
	"github.com/aretw0/muster/pkg/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SocketTransport multiplexes subscriptions over one WebSocket connection.
// Results are matched to subscriptions by request id, in whatever order the
// server sends them. The connection is dialled on first use and re-dialled
// after it is lost.
type SocketTransport struct {
	url      string
	registry *registry.Registry
	dialer   *websocket.Dialer
	logger   *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]func(*domain.Definition)

	writeMu sync.Mutex
}

// SocketOption configures a SocketTransport.
type SocketOption func(*SocketTransport)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(dialer *websocket.Dialer) SocketOption {
	return func(t *SocketTransport) {
		t.dialer = dialer
	}
}

// WithSocketLogger sets the transport logger.
func WithSocketLogger(logger *slog.Logger) SocketOption {
	return func(t *SocketTransport) {
		t.logger = logger
	}
}

// NewSocketTransport creates a transport for the subscription endpoint at url
// (ws:// or wss://). Responses are decoded with the node types of reg.
func NewSocketTransport(url string, reg *registry.Registry, opts ...SocketOption) *SocketTransport {
	t := &SocketTransport{
		url:      url,
		registry: reg,
		dialer:   websocket.DefaultDialer,
		logger:   logging.NewNop(),
		handlers: make(map[string]func(*domain.Definition)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe opens a remote subscription for query.
func (t *SocketTransport) Subscribe(query *domain.Definition, fn func(*domain.Definition)) (cancel func()) {
	data, err := wire.Serialize(query)
	if err != nil {
		fn(domain.ErrorNode(fmt.Errorf("encode query: %w", err)))
		return func() {}
	}

	t.mu.Lock()
	conn, err := t.connect()
	if err != nil {
		t.mu.Unlock()
		fn(domain.ErrorNode(err))
		return func() {}
	}
	id := uuid.NewString()
	t.handlers[id] = fn
	t.mu.Unlock()

	if err := t.write(conn, wire.Subscribe(id, data)); err != nil {
		t.logger.Warn("Subscribe write failed", "request_id", id, "error", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			_, active := t.handlers[id]
			delete(t.handlers, id)
			current := t.conn == conn
			t.mu.Unlock()
			if active && current {
				if err := t.write(conn, wire.Unsubscribe(id)); err != nil {
					t.logger.Debug("Unsubscribe write failed", "request_id", id, "error", err)
				}
			}
		})
	}
}

// Query subscribes until the first settled result arrives.
func (t *SocketTransport) Query(ctx context.Context, query *domain.Definition) (*domain.Definition, error) {
	results := make(chan *domain.Definition, 1)
	cancel := t.Subscribe(query, func(result *domain.Definition) {
		if domain.IsPending(result) {
			return
		}
		select {
		case results <- result:
		default:
		}
	})
	defer cancel()

	select {
	case result := <-results:
		if e := domain.ErrorOf(result); e != nil {
			return result, e
		}
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops the connection. Open subscriptions receive an error result.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// connect returns the live connection, dialling one if needed. Callers hold mu.
func (t *SocketTransport) connect() (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	conn, _, err := t.dialer.Dial(t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}
	t.conn = conn
	go t.readLoop(conn)
	return conn, nil
}

func (t *SocketTransport) write(conn *websocket.Conn, msg wire.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (t *SocketTransport) readLoop(conn *websocket.Conn) {
	for {
		var msg wire.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.drop(conn, err)
			return
		}
		if err := msg.Validate(); err != nil || msg.Name != wire.MessageSubscriptionResult {
			t.logger.Warn("Unexpected message", "name", msg.Name, "error", err)
			continue
		}

		t.mu.Lock()
		fn := t.handlers[msg.RequestID]
		t.mu.Unlock()
		if fn == nil {
			// Late result of a cancelled subscription.
			continue
		}
		result, err := wire.Deserialize(t.registry, msg.Response)
		if err != nil {
			result = domain.ErrorNode(fmt.Errorf("decode remote result: %w", err))
		}
		fn(result)
	}
}

// drop forgets a lost connection and fails every subscription on it.
func (t *SocketTransport) drop(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	handlers := t.handlers
	t.handlers = make(map[string]func(*domain.Definition))
	t.mu.Unlock()
	conn.Close()

	if len(handlers) > 0 {
		t.logger.Warn("Connection lost", "url", t.url, "subscriptions", len(handlers), "error", cause)
	}
	for _, fn := range handlers {
		fn(domain.ErrorNode(fmt.Errorf("remote connection lost: %w", cause)))
	}
}
