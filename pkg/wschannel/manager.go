// Package wschannel keeps one websocket connection to a GraphQL endpoint and multiplexes
// subscriptions over it, speaking graphql-transport-ws or the legacy graphql-ws protocol.
package wschannel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphiql-fetcher/pkg/transport"
)

const defaultAckTimeout = 30 * time.Second

var errManagerClosed = errors.New("wschannel: connection manager closed while connecting")

type opts struct {
	log         abstractlogger.Logger
	httpClient  *http.Client
	header      http.Header
	subProtocol string
	ackTimeout  time.Duration
	initPayload json.RawMessage
}

type Options func(options *opts)

func WithLogger(log abstractlogger.Logger) Options {
	return func(options *opts) {
		options.log = log
	}
}

func WithHTTPClient(client *http.Client) Options {
	return func(options *opts) {
		options.httpClient = client
	}
}

// WithHeader sets the headers of the upgrade request.
func WithHeader(header http.Header) Options {
	return func(options *opts) {
		options.header = header
	}
}

// WithSubProtocol selects ProtocolGraphQLTWS (default) or ProtocolGraphQLWS.
func WithSubProtocol(protocol string) Options {
	return func(options *opts) {
		options.subProtocol = protocol
	}
}

// WithAckTimeout bounds dialing plus waiting for connection_ack.
func WithAckTimeout(timeout time.Duration) Options {
	return func(options *opts) {
		options.ackTimeout = timeout
	}
}

// WithInitPayload sets the payload of the connection_init message.
func WithInitPayload(payload json.RawMessage) Options {
	return func(options *opts) {
		options.initPayload = payload
	}
}

// ConnectionManager owns the shared connection to one subscription endpoint.
// The connection is opened lazily by Register or eagerly by Open and lives until CloseAll
// or until it fails, in which case the next Register dials again.
type ConnectionManager struct {
	url  string
	opts *opts

	dialMu sync.Mutex

	mu         sync.Mutex
	conn       *connection
	generation uint64
}

func NewConnectionManager(url string, options ...Options) *ConnectionManager {
	op := &opts{
		log:         abstractlogger.NoopLogger,
		httpClient:  http.DefaultClient,
		subProtocol: ProtocolGraphQLTWS,
		ackTimeout:  defaultAckTimeout,
	}
	for _, option := range options {
		option(op)
	}
	return &ConnectionManager{
		url:  url,
		opts: op,
	}
}

// Open connects eagerly, it is a no-op when a connection is open.
func (m *ConnectionManager) Open(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ackTimeout)
	defer cancel()
	_, err := m.connection(ctx)
	return err
}

// Register starts a subscription without blocking, events are delivered to sink.
// The returned func deregisters the subscription and never closes the connection.
func (m *ConnectionManager) Register(body transport.Body, sink transport.Sink) (deregister func()) {
	reg := &registration{}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.ackTimeout)
		defer cancel()

		if reg.isCancelled() {
			return
		}

		conn, id, err := m.subscribe(ctx, body, sink)
		if err != nil {
			m.opts.log.Error("wschannel: subscribe failed",
				abstractlogger.String("url", m.url),
				abstractlogger.Error(err),
			)
			if !reg.isCancelled() {
				sink.Error(transport.NativeFailure{Err: err})
			}
			return
		}

		reg.mu.Lock()
		if reg.cancelled {
			reg.mu.Unlock()
			conn.unsubscribe(id)
			return
		}
		reg.conn, reg.id = conn, id
		reg.mu.Unlock()
	}()

	return reg.deregister
}

// subscribe retries once when the connection closed between lookup and subscribe.
func (m *ConnectionManager) subscribe(ctx context.Context, body transport.Body, sink transport.Sink) (*connection, string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := m.connection(ctx)
		if err != nil {
			return nil, "", err
		}
		id, err := conn.subscribe(body, sink)
		if err == nil {
			return conn, id, nil
		}
		if !errors.Is(err, errConnectionClosed) {
			return nil, "", err
		}
		m.forget(conn)
		lastErr = err
	}
	return nil, "", lastErr
}

// CloseAll completes every active subscription and closes the connection normally.
// The manager stays usable, a later Register dials again.
func (m *ConnectionManager) CloseAll() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.generation++
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.close()
}

// ActiveSubscriptions reports the subscriptions of the open connection.
func (m *ConnectionManager) ActiveSubscriptions() int {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return 0
	}
	return conn.activeSubscriptions()
}

func (m *ConnectionManager) connection(ctx context.Context) (*connection, error) {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	conn, generation := m.conn, m.generation
	m.mu.Unlock()
	if conn != nil {
		return conn, nil
	}

	m.opts.log.Debug("wschannel: dialing",
		abstractlogger.String("url", m.url),
		abstractlogger.String("protocol", m.opts.subProtocol),
	)
	conn, err := dial(ctx, m.url, m.opts, m.forget)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		_ = conn.close()
		return nil, errManagerClosed
	}
	m.conn = conn
	m.mu.Unlock()

	return conn, nil
}

func (m *ConnectionManager) forget(conn *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == conn {
		m.conn = nil
	}
}

type registration struct {
	mu        sync.Mutex
	cancelled bool
	conn      *connection
	id        string
}

func (r *registration) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *registration) deregister() {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	r.cancelled = true
	conn, id := r.conn, r.id
	r.mu.Unlock()

	if conn != nil {
		conn.unsubscribe(id)
	}
}
