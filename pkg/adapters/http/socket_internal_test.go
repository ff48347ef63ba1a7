package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/muster"
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/nodes"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverConn returns the server side of a live WebSocket connection.
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			conns <- conn
		}
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade did not complete")
		return nil
	}
}

func TestSession_SlowClient(t *testing.T) {
	eng, err := muster.New(nodes.Tree(nil))
	require.NoError(t, err)
	s := NewServer(eng, WithSendBuffer(2))
	c := newSession(s, serverConn(t))

	stopped := false
	c.subs["a"] = func() { stopped = true }

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 5; i++ {
			c.send("a", domain.Value(i))
		}
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a full buffer")
	}
	select {
	case <-c.done:
	default:
		t.Fatal("session stayed open after overflowing")
	}
	assert.True(t, stopped, "subscriptions are cancelled with the session")
	assert.Len(t, c.out, 2)
}

func TestSession_SendAfterClose(t *testing.T) {
	eng, err := muster.New(nodes.Tree(nil))
	require.NoError(t, err)
	c := newSession(NewServer(eng), serverConn(t))
	c.close()

	c.send("a", domain.Value(1))
	assert.Empty(t, c.out)
}
