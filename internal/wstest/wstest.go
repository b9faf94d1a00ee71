// Package wstest runs scripted GraphQL websocket servers for tests.
package wstest

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

const (
	ConnectionAckMessage = `{"type":"connection_ack"}`
)

// Script runs on every accepted connection after connection_init was acknowledged.
type Script func(t *testing.T, conn *Conn)

type Server struct {
	*httptest.Server
	// Connections counts upgraded connections
	Connections *atomic.Int64
	// Inits receives the connection_init message of every connection
	Inits chan string
}

// NewServer starts a server accepting only protocol. It is closed when the test ends.
func NewServer(t *testing.T, protocol string, script Script) *Server {
	t.Helper()
	s := &Server{
		Connections: atomic.NewInt64(0),
		Inits:       make(chan string, 16),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := ws.HTTPUpgrader{
			Protocol: func(p string) bool { return p == protocol },
		}
		netConn, _, _, err := upgrader.Upgrade(r, w)
		if !assert.NoError(t, err) {
			return
		}
		defer netConn.Close()
		s.Connections.Inc()

		conn := &Conn{Conn: netConn, t: t}
		s.Inits <- conn.Read()
		conn.Write(ConnectionAckMessage)

		script(t, conn)
	}))
	t.Cleanup(s.Close)
	return s
}

// Conn is the server side of one connection.
type Conn struct {
	net.Conn
	t *testing.T
}

func (c *Conn) Read() string {
	data, err := wsutil.ReadClientText(c.Conn)
	assert.NoError(c.t, err)
	return string(data)
}

func (c *Conn) Write(message string) {
	assert.NoError(c.t, wsutil.WriteServerText(c.Conn, []byte(message)))
}

// CloseWith sends a close frame.
func (c *Conn) CloseWith(code int, reason string) {
	assert.NoError(c.t, wsutil.WriteServerMessage(c.Conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusCode(code), reason)))
}

// Drain discards client messages until the client closes, answering the close handshake.
func (c *Conn) Drain() {
	for {
		if _, err := wsutil.ReadClientText(c.Conn); err != nil {
			return
		}
	}
}
