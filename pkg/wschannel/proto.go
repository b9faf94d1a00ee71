package wschannel

import (
	"fmt"
)

// websocket sub-protocol:
// https://github.com/enisdenjo/graphql-ws/blob/master/PROTOCOL.md
const (
	ProtocolGraphQLTWS = "graphql-transport-ws"

	subscribeMessage = `{"id":"%s","type":"subscribe","payload":%s}`
	completeMessage  = `{"id":"%s","type":"complete"}`
	pongMessage      = `{"type":"pong"}`

	messageTypePing = "ping"
	messageTypePong = "pong"
	messageTypeNext = "next"
)

// websocket sub-protocol:
// https://github.com/apollographql/subscriptions-transport-ws/blob/master/PROTOCOL.md
const (
	ProtocolGraphQLWS = "graphql-ws"

	startMessage               = `{"id":"%s","type":"start","payload":%s}`
	stopMessage                = `{"id":"%s","type":"stop"}`
	connectionTerminateMessage = `{"type":"connection_terminate"}`

	messageTypeConnectionKeepAlive = "ka"
	messageTypeData                = "data"
	messageTypeConnectionError     = "connection_error"
)

// common
var (
	connectionInitMessage = []byte(`{"type":"connection_init"}`)
)

const (
	messageTypeConnectionAck = "connection_ack"
	messageTypeComplete      = "complete"
	messageTypeError         = "error"
)

// protocol holds the message templates that differ between the two sub-protocols.
type protocol struct {
	name     string
	start    string
	stop     string
	terminal string
}

func protocolFor(name string) (protocol, error) {
	switch name {
	case ProtocolGraphQLTWS:
		return protocol{name: name, start: subscribeMessage, stop: completeMessage}, nil
	case ProtocolGraphQLWS:
		return protocol{name: name, start: startMessage, stop: stopMessage, terminal: connectionTerminateMessage}, nil
	default:
		return protocol{}, fmt.Errorf("unknown protocol %s", name)
	}
}

func (p protocol) startMessage(id string, payload []byte) []byte {
	return []byte(fmt.Sprintf(p.start, id, payload))
}

func (p protocol) stopMessage(id string) []byte {
	return []byte(fmt.Sprintf(p.stop, id))
}
