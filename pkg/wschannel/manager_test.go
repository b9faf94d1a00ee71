package wschannel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gobwas/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphiql-fetcher/internal/wstest"
	"github.com/wundergraph/graphiql-fetcher/pkg/transport"
)

type sinkEvent struct {
	payload  string
	failure  transport.Failure
	complete bool
}

type channelSink struct {
	events chan sinkEvent
}

func newChannelSink() *channelSink {
	return &channelSink{events: make(chan sinkEvent, 64)}
}

func (s *channelSink) Next(payload []byte) {
	s.events <- sinkEvent{payload: string(payload)}
}

func (s *channelSink) Error(failure transport.Failure) {
	s.events <- sinkEvent{failure: failure}
}

func (s *channelSink) Complete() {
	s.events <- sinkEvent{complete: true}
}

func (s *channelSink) next(t *testing.T) sinkEvent {
	t.Helper()
	select {
	case event := <-s.events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for sink event")
		return sinkEvent{}
	}
}

var testBody = transport.Body{Query: "subscription { counter }"}

func TestConnectionManager_GraphQLTransportWS(t *testing.T) {
	t.Run("subscribe next complete", func(t *testing.T) {
		server := wstest.NewServer(t, ProtocolGraphQLTWS, func(t *testing.T, conn *wstest.Conn) {
			assert.JSONEq(t, `{"id":"1","type":"subscribe","payload":{"query":"subscription { counter }","operationName":null,"variables":null}}`, conn.Read())

			conn.Write(`{"type":"ping"}`)
			assert.JSONEq(t, `{"type":"pong"}`, conn.Read())

			conn.Write(`{"id":"1","type":"next","payload":{"data":{"counter":1}}}`)
			conn.Write(`{"type":"pong"}`)
			conn.Write(`{"id":"1","type":"next","payload":{"data":{"counter":2}}}`)
			conn.Write(`{"id":"1","type":"next","payload":{"data":{"counter":3}}}`)
			conn.Write(`{"id":"1","type":"complete"}`)
			conn.Drain()
		})

		manager := NewConnectionManager(server.URL, WithInitPayload([]byte(`{"token":"secret"}`)))
		defer manager.CloseAll()

		sink := newChannelSink()
		manager.Register(testBody, sink)

		assert.JSONEq(t, `{"type":"connection_init","payload":{"token":"secret"}}`, <-server.Inits)
		assert.Equal(t, `{"data":{"counter":1}}`, sink.next(t).payload)
		assert.Equal(t, `{"data":{"counter":2}}`, sink.next(t).payload)
		assert.Equal(t, `{"data":{"counter":3}}`, sink.next(t).payload)
		assert.True(t, sink.next(t).complete)
		assert.Eventually(t, func() bool {
			return manager.ActiveSubscriptions() == 0
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("error payload", func(t *testing.T) {
		server := wstest.NewServer(t, ProtocolGraphQLTWS, func(t *testing.T, conn *wstest.Conn) {
			conn.Read()
			conn.Write(`{"id":"1","type":"error","payload":[{"message":"first"},{"message":"second"}]}`)
			conn.Drain()
		})

		manager := NewConnectionManager(server.URL)
		defer manager.CloseAll()

		sink := newChannelSink()
		manager.Register(testBody, sink)

		event := sink.next(t)
		assert.Equal(t, transport.MultiFailure{Messages: []string{"first", "second"}}, event.failure)
	})

	t.Run("close frame fails subscriptions and the next register redials", func(t *testing.T) {
		server := wstest.NewServer(t, ProtocolGraphQLTWS, func(t *testing.T, conn *wstest.Conn) {
			conn.Read()
			conn.CloseWith(4400, "bad request")
			conn.Drain()
		})

		manager := NewConnectionManager(server.URL)
		defer manager.CloseAll()

		first := newChannelSink()
		manager.Register(testBody, first)
		assert.Equal(t, transport.ClosedFailure{Code: 4400, Reason: "bad request"}, first.next(t).failure)

		second := newChannelSink()
		manager.Register(testBody, second)
		assert.Equal(t, transport.ClosedFailure{Code: 4400, Reason: "bad request"}, second.next(t).failure)
		assert.Equal(t, int64(2), server.Connections.Load())
	})

	t.Run("dropped connection", func(t *testing.T) {
		server := wstest.NewServer(t, ProtocolGraphQLTWS, func(t *testing.T, conn *wstest.Conn) {
			conn.Read()
		})

		manager := NewConnectionManager(server.URL)
		defer manager.CloseAll()

		sink := newChannelSink()
		manager.Register(testBody, sink)
		assert.Equal(t, transport.ClosedFailure{Code: 1006}, sink.next(t).failure)
	})

	t.Run("deregister keeps the connection open", func(t *testing.T) {
		proceed := make(chan struct{})
		server := wstest.NewServer(t, ProtocolGraphQLTWS, func(t *testing.T, conn *wstest.Conn) {
			conn.Read()
			conn.Read()
			close(proceed)
			assert.JSONEq(t, `{"id":"1","type":"complete"}`, conn.Read())
			conn.Write(`{"id":"1","type":"next","payload":{"data":{"ignored":true}}}`)
			conn.Write(`{"id":"2","type":"next","payload":{"data":{"counter":1}}}`)
			conn.Drain()
		})

		manager := NewConnectionManager(server.URL)
		defer manager.CloseAll()

		first, second := newChannelSink(), newChannelSink()
		deregister := manager.Register(testBody, first)
		require.Eventually(t, func() bool {
			return manager.ActiveSubscriptions() == 1
		}, 5*time.Second, 10*time.Millisecond)
		manager.Register(testBody, second)
		<-proceed

		deregister()
		deregister()

		assert.Equal(t, `{"data":{"counter":1}}`, second.next(t).payload)
		assert.Len(t, first.events, 0)
		assert.Equal(t, int64(1), server.Connections.Load())
		assert.Equal(t, 1, manager.ActiveSubscriptions())
	})

	t.Run("close all completes subscriptions", func(t *testing.T) {
		server := wstest.NewServer(t, ProtocolGraphQLTWS, func(t *testing.T, conn *wstest.Conn) {
			conn.Read()
			conn.Write(`{"id":"1","type":"next","payload":{"data":{"counter":1}}}`)
			conn.Drain()
		})

		manager := NewConnectionManager(server.URL)

		sink := newChannelSink()
		manager.Register(testBody, sink)
		assert.Equal(t, `{"data":{"counter":1}}`, sink.next(t).payload)

		_ = manager.CloseAll()
		assert.True(t, sink.next(t).complete)
		assert.Equal(t, 0, manager.ActiveSubscriptions())
	})

	t.Run("open is idempotent", func(t *testing.T) {
		server := wstest.NewServer(t, ProtocolGraphQLTWS, func(t *testing.T, conn *wstest.Conn) {
			conn.Drain()
		})

		manager := NewConnectionManager(server.URL)
		defer manager.CloseAll()

		require.NoError(t, manager.Open(context.Background()))
		require.NoError(t, manager.Open(context.Background()))
		assert.Equal(t, int64(1), server.Connections.Load())
		assert.JSONEq(t, `{"type":"connection_init"}`, <-server.Inits)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		manager := NewConnectionManager(url, WithAckTimeout(time.Second))
		sink := newChannelSink()
		manager.Register(testBody, sink)

		failure, ok := sink.next(t).failure.(transport.NativeFailure)
		require.True(t, ok)
		assert.Error(t, failure.Err)
	})

	t.Run("server hangs up during connection init", func(t *testing.T) {
		upgrades := atomic.NewInt64(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			upgrader := ws.HTTPUpgrader{
				Protocol: func(p string) bool { return p == ProtocolGraphQLTWS },
			}
			netConn, _, _, err := upgrader.Upgrade(r, w)
			if !assert.NoError(t, err) {
				return
			}
			upgrades.Inc()
			_ = netConn.Close()
		}))
		defer server.Close()

		manager := NewConnectionManager(server.URL, WithAckTimeout(time.Second))
		defer manager.CloseAll()

		for i := 0; i < 2; i++ {
			sink := newChannelSink()
			manager.Register(testBody, sink)

			failure, ok := sink.next(t).failure.(transport.NativeFailure)
			require.True(t, ok)
			assert.Error(t, failure.Err)
		}

		assert.Equal(t, int64(2), upgrades.Load())
		assert.Equal(t, 0, manager.ActiveSubscriptions())
	})
}

func TestConnectionManager_GraphQLWS(t *testing.T) {
	server := wstest.NewServer(t, ProtocolGraphQLWS, func(t *testing.T, conn *wstest.Conn) {
		assert.JSONEq(t, `{"id":"1","type":"start","payload":{"query":"subscription { counter }","operationName":null,"variables":null}}`, conn.Read())
		conn.Write(`{"type":"ka"}`)
		conn.Write(`{"id":"1","type":"data","payload":{"data":{"counter":1}}}`)
		conn.Write(`{"id":"1","type":"error","payload":{"message":"boom"}}`)
		conn.Drain()
	})

	manager := NewConnectionManager(server.URL, WithSubProtocol(ProtocolGraphQLWS))
	defer manager.CloseAll()

	sink := newChannelSink()
	manager.Register(testBody, sink)

	assert.Equal(t, `{"data":{"counter":1}}`, sink.next(t).payload)
	assert.Equal(t, transport.MultiFailure{Messages: []string{"boom"}}, sink.next(t).failure)
}

func TestErrorMessages(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, errorMessagesOf(`{"payload":[{"message":"a"},{"message":"b"}]}`))
	})
	t.Run("object", func(t *testing.T) {
		assert.Equal(t, []string{"a"}, errorMessagesOf(`{"payload":{"message":"a"}}`))
	})
	t.Run("wrapped errors", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, errorMessagesOf(`{"payload":{"errors":[{"message":"a"},{"message":"b"}]}}`))
	})
	t.Run("string", func(t *testing.T) {
		assert.Equal(t, []string{"a \"quoted\""}, errorMessagesOf(`{"payload":"a \"quoted\""}`))
	})
	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, []string{"fallback"}, errorMessagesOf(`{}`))
	})
}

func errorMessagesOf(message string) []string {
	payload, dataType, _, _ := jsonparser.Get([]byte(message), "payload")
	return errorMessages(payload, dataType, "fallback")
}
