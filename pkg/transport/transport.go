// Package transport holds the types shared between the fetcher and the transports it dispatches to.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// Body is the GraphQL request payload sent over both the stateless and the duplex transport.
type Body struct {
	Query         string
	OperationName string
	// Variables is the JSON encoded variables object, nil means null
	Variables json.RawMessage
}

// MarshalJSON renders {"query":…,"operationName":…,"variables":…}.
// An empty OperationName and nil Variables are sent as null.
func (b Body) MarshalJSON() ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "query", b.Query)
	if err != nil {
		return nil, err
	}
	if b.OperationName == "" {
		out, err = sjson.SetRawBytes(out, "operationName", []byte("null"))
	} else {
		out, err = sjson.SetBytes(out, "operationName", b.OperationName)
	}
	if err != nil {
		return nil, err
	}
	variables := b.Variables
	if len(variables) == 0 {
		variables = []byte("null")
	}
	if !json.Valid(variables) {
		return nil, fmt.Errorf("variables are not valid JSON")
	}
	return sjson.SetRawBytes(out, "variables", variables)
}

// Sink receives the events of exactly one subscription registered on a duplex channel.
// Implementations must tolerate Next being called from a goroutine other than the one that registered.
type Sink interface {
	// Next receives the raw payload of one inbound result message
	Next(payload []byte)
	// Error terminates the subscription with a channel failure
	Error(failure Failure)
	// Complete terminates the subscription normally
	Complete()
}

// Failure is the closed set of channel-level failures: NativeFailure, ClosedFailure and MultiFailure.
type Failure interface {
	failure()
}

// NativeFailure wraps a Go error raised by the channel itself (dial, write, protocol).
type NativeFailure struct {
	Err error
}

// ClosedFailure reports that the connection was closed by a close frame or dropped (code 1006).
type ClosedFailure struct {
	Code   int
	Reason string
}

// MultiFailure carries the messages of the error objects the server reported for a subscription.
type MultiFailure struct {
	Messages []string
}

func (NativeFailure) failure() {}
func (ClosedFailure) failure() {}
func (MultiFailure) failure()  {}
