package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/wire"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Subscribe handles GET /ws. Every subscribe message opens a subscription whose
// results stream back as subscription-result messages carrying the same
// request id, until the client unsubscribes or disconnects.
func (s *Server) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Subscribe: upgrade failed", "error", err)
		return
	}
	c := newSession(s, conn)
	go c.writeLoop()
	c.readLoop()
}

func newSession(s *Server, conn *websocket.Conn) *session {
	return &session{
		server: s,
		conn:   conn,
		out:    make(chan wire.Message, s.sendBuf),
		done:   make(chan struct{}),
		subs:   make(map[string]func()),
	}
}

// session is one WebSocket connection and the subscriptions it holds.
type session struct {
	server *Server
	conn   *websocket.Conn
	out    chan wire.Message
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	subs map[string]func()
}

func (c *session) readLoop() {
	defer c.close()
	for {
		var msg wire.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.server.logger.Warn("Subscribe: connection lost", "error", err)
			}
			return
		}
		if err := msg.Validate(); err != nil {
			c.server.logger.Warn("Subscribe: invalid message", "error", err)
			continue
		}
		switch msg.Name {
		case wire.MessageSubscribe:
			c.subscribe(msg)
		case wire.MessageUnsubscribe:
			c.unsubscribe(msg.RequestID)
		default:
			c.server.logger.Warn("Subscribe: unexpected message", "name", msg.Name, "request_id", msg.RequestID)
		}
	}
}

func (c *session) writeLoop() {
	for {
		select {
		case msg := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Warn("Subscribe: write failed", "error", err)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *session) subscribe(msg wire.Message) {
	id := msg.RequestID
	query, err := wire.Deserialize(c.server.Engine.Registry(), msg.Query)
	if err != nil {
		c.send(id, domain.ErrorNode(err))
		return
	}
	// A reused request id replaces the earlier subscription.
	c.unsubscribe(id)
	stop := c.server.Engine.SubscribeNode(c.server.node(query), func(result *domain.Definition) {
		c.send(id, result)
	})

	c.mu.Lock()
	if c.subs == nil {
		c.mu.Unlock()
		stop()
		return
	}
	c.subs[id] = stop
	c.mu.Unlock()
}

func (c *session) unsubscribe(id string) {
	c.mu.Lock()
	stop := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *session) send(id string, result *domain.Definition) {
	data, err := wire.Serialize(result)
	if err != nil {
		data, _ = wire.Serialize(domain.ErrorNode(err))
	}
	// send runs on the engine's delivery queue and must never block it.
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- wire.Result(id, data):
	default:
		c.server.logger.Warn("Subscribe: client too slow, closing", "request_id", id, "buffer", cap(c.out))
		c.close()
	}
}

func (c *session) close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()
		for _, stop := range subs {
			stop()
		}
		c.conn.Close()
	})
}
