package wschannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
	"nhooyr.io/websocket"

	"github.com/wundergraph/graphiql-fetcher/pkg/transport"
)

const writeTimeout = 5 * time.Second

var errConnectionClosed = errors.New("wschannel: connection closed")

// connection multiplexes subscriptions over one websocket.
// A single reader goroutine delivers all inbound events, so events of one subscription are never concurrent.
type connection struct {
	conn     *websocket.Conn
	protocol protocol
	log      abstractlogger.Logger

	nextID atomic.Int64

	mu            sync.Mutex
	subscriptions map[string]transport.Sink
	closed        bool

	onClose     func(c *connection)
	onCloseOnce sync.Once
}

func dial(ctx context.Context, url string, o *opts, onClose func(c *connection)) (*connection, error) {
	conn, upgradeResponse, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient:      o.httpClient,
		HTTPHeader:      o.header,
		CompressionMode: websocket.CompressionDisabled,
		Subprotocols:    []string{o.subProtocol},
	})
	if err != nil {
		return nil, err
	}
	if upgradeResponse.StatusCode != http.StatusSwitchingProtocols {
		_ = conn.Close(websocket.StatusProtocolError, "")
		return nil, fmt.Errorf("upgrade unsuccessful")
	}

	subProtocol := conn.Subprotocol()
	if subProtocol == "" {
		subProtocol = o.subProtocol
	}
	proto, err := protocolFor(subProtocol)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "")
		return nil, err
	}

	// init + ack
	initMessage := connectionInitMessage
	if len(o.initPayload) != 0 {
		initMessage, err = jsonparser.Set(connectionInitMessage, o.initPayload, "payload")
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "")
			return nil, err
		}
	}
	err = conn.Write(ctx, websocket.MessageText, initMessage)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}

	if err := waitForAck(ctx, conn); err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "")
		return nil, err
	}

	c := &connection{
		conn:          conn,
		protocol:      proto,
		log:           o.log,
		subscriptions: map[string]transport.Sink{},
		onClose:       onClose,
	}
	go c.readLoop()
	return c, nil
}

func waitForAck(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, msg, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if msgType != websocket.MessageText {
			return fmt.Errorf("unexpected message type")
		}

		respType, err := jsonparser.GetString(msg, "type")
		if err != nil {
			return err
		}

		switch respType {
		case messageTypeConnectionKeepAlive:
			continue
		case messageTypePing:
			err := conn.Write(ctx, websocket.MessageText, []byte(pongMessage))
			if err != nil {
				return fmt.Errorf("failed to send pong message: %w", err)
			}

			continue
		case messageTypeConnectionAck:
			return nil
		case messageTypeConnectionError:
			return fmt.Errorf("connection rejected: %s", msg)
		default:
			return fmt.Errorf("expected connection_ack or ka, got %s", respType)
		}
	}
}

// subscribe registers sink and sends the start message, the sink is reachable before the server can answer.
func (c *connection) subscribe(body transport.Body, sink transport.Sink) (string, error) {
	payload, err := body.MarshalJSON()
	if err != nil {
		return "", err
	}

	id := strconv.FormatInt(c.nextID.Inc(), 10)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", errConnectionClosed
	}
	c.subscriptions[id] = sink
	c.mu.Unlock()

	if err := c.write(c.protocol.startMessage(id, payload)); err != nil {
		c.remove(id)
		return "", err
	}
	return id, nil
}

// unsubscribe stops one subscription, the connection stays open.
func (c *connection) unsubscribe(id string) {
	if _, ok := c.remove(id); !ok {
		return
	}
	if err := c.write(c.protocol.stopMessage(id)); err != nil {
		c.log.Debug("wschannel: failed to send stop message",
			abstractlogger.String("id", id),
			abstractlogger.Error(err),
		)
	}
}

func (c *connection) remove(id string) (transport.Sink, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sink, ok := c.subscriptions[id]
	if ok {
		delete(c.subscriptions, id)
	}
	return sink, ok
}

func (c *connection) lookup(id string) (transport.Sink, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sink, ok := c.subscriptions[id]
	return sink, ok
}

func (c *connection) write(message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, message)
}

func (c *connection) activeSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// readLoop runs until the websocket fails or is closed.
func (c *connection) readLoop() {
	for {
		msgType, data, err := c.conn.Read(context.Background())
		if err != nil {
			c.shutdown(classifyReadError(err))
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		c.handleMessage(data)
	}
}

func (c *connection) handleMessage(data []byte) {
	messageType, err := jsonparser.GetString(data, "type")
	if err != nil {
		c.log.Debug("wschannel: message without type", abstractlogger.ByteString("message", data))
		return
	}

	switch messageType {
	case messageTypeNext, messageTypeData:
		c.handleMessageTypeNext(data)
	case messageTypeError:
		c.handleMessageTypeError(data)
	case messageTypeComplete:
		c.handleMessageTypeComplete(data)
	case messageTypePing:
		if err := c.write([]byte(pongMessage)); err != nil {
			c.log.Debug("wschannel: failed to send pong message", abstractlogger.Error(err))
		}
	case messageTypePong, messageTypeConnectionKeepAlive:
	case messageTypeConnectionError:
		payload, dataType, _, _ := jsonparser.Get(data, "payload")
		c.log.Error("wschannel: connection error", abstractlogger.ByteString("payload", payload))
		c.shutdown(transport.MultiFailure{Messages: errorMessages(payload, dataType, "connection error")})
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	default:
		c.log.Debug("wschannel: unknown message type", abstractlogger.String("type", messageType))
	}
}

func (c *connection) handleMessageTypeNext(data []byte) {
	id, err := jsonparser.GetString(data, "id")
	if err != nil {
		return
	}
	sink, ok := c.lookup(id)
	if !ok {
		return
	}
	payload, _, _, err := jsonparser.Get(data, "payload")
	if err != nil {
		return
	}
	sink.Next(payload)
}

func (c *connection) handleMessageTypeError(data []byte) {
	id, err := jsonparser.GetString(data, "id")
	if err != nil {
		return
	}
	sink, ok := c.remove(id)
	if !ok {
		return
	}
	payload, dataType, _, _ := jsonparser.Get(data, "payload")
	sink.Error(transport.MultiFailure{Messages: errorMessages(payload, dataType, "subscription error")})
}

func (c *connection) handleMessageTypeComplete(data []byte) {
	id, err := jsonparser.GetString(data, "id")
	if err != nil {
		return
	}
	sink, ok := c.remove(id)
	if !ok {
		return
	}
	sink.Complete()
}

// shutdown fails every active subscription, it is a no-op after close.
func (c *connection) shutdown(failure transport.Failure) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.notifyClosed()
		return
	}
	c.closed = true
	subscriptions := c.subscriptions
	c.subscriptions = map[string]transport.Sink{}
	c.mu.Unlock()

	c.notifyClosed()

	if len(subscriptions) != 0 {
		c.log.Debug("wschannel: connection lost",
			abstractlogger.Int("subscriptions", len(subscriptions)),
			abstractlogger.Any("failure", failure),
		)
	}
	for _, sink := range subscriptions {
		sink.Error(failure)
	}
}

// close completes every active subscription and closes the websocket normally.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subscriptions := c.subscriptions
	c.subscriptions = map[string]transport.Sink{}
	c.mu.Unlock()

	c.notifyClosed()

	for id, sink := range subscriptions {
		_ = c.write(c.protocol.stopMessage(id))
		sink.Complete()
	}
	if c.protocol.terminal != "" {
		_ = c.write([]byte(c.protocol.terminal))
	}
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *connection) notifyClosed() {
	c.onCloseOnce.Do(func() {
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

func classifyReadError(err error) transport.Failure {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		return transport.ClosedFailure{Code: int(closeErr.Code), Reason: closeErr.Reason}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return transport.ClosedFailure{Code: int(websocket.StatusAbnormalClosure)}
	}
	return transport.NativeFailure{Err: err}
}

// errorMessages extracts the messages of an error payload.
// Both a list of errors and a single error object (optionally wrapping "errors") are accepted.
func errorMessages(payload []byte, dataType jsonparser.ValueType, fallback string) []string {
	var messages []string
	collect := func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		switch dataType {
		case jsonparser.Object:
			if message, err := jsonparser.GetString(value, "message"); err == nil {
				messages = append(messages, message)
				return
			}
		case jsonparser.String:
			if message, err := jsonparser.ParseString(value); err == nil {
				messages = append(messages, message)
				return
			}
		}
		messages = append(messages, string(value))
	}

	switch dataType {
	case jsonparser.Array:
		_, _ = jsonparser.ArrayEach(payload, collect)
	case jsonparser.Object:
		if errs, errsType, _, err := jsonparser.Get(payload, "errors"); err == nil && errsType == jsonparser.Array {
			_, _ = jsonparser.ArrayEach(errs, collect)
		} else {
			collect(payload, jsonparser.Object, 0, nil)
		}
	case jsonparser.String:
		collect(payload, jsonparser.String, 0, nil)
	}

	if len(messages) == 0 {
		messages = []string{fallback}
	}
	return messages
}
