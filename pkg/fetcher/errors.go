package fetcher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wundergraph/graphiql-fetcher/pkg/document"
	"github.com/wundergraph/graphiql-fetcher/pkg/transport"
)

// ErrNoSubscriptionChannel is returned by Dispatch for subscriptions when the Fetcher has no Channel.
var ErrNoSubscriptionChannel = errors.New("fetcher: no subscription channel configured")

type (
	ParseError              = document.ParseError
	AmbiguousOperationError = document.AmbiguousOperationError
	UnknownOperationError   = document.UnknownOperationError
)

// TransportError reports a failed one-shot request.
// Err is set for network failures, StatusCode and Body for responses rejected by the StatusPolicy.
type TransportError struct {
	Err        error
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "transport error: " + e.Err.Error()
	}
	return fmt.Sprintf("transport error: unexpected status code %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CloseError is the normalized form of a closed duplex connection.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	message := "socket closed with event " + strconv.Itoa(e.Code)
	if e.Reason != "" {
		message += ": " + e.Reason
	}
	return message
}

// MultiError joins the errors a server reported for a subscription.
type MultiError struct {
	Messages []string
}

func (e *MultiError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// NormalizeFailure turns a channel failure into the error handed to observers.
// Native errors pass through unchanged.
func NormalizeFailure(failure transport.Failure) error {
	switch f := failure.(type) {
	case transport.NativeFailure:
		if f.Err == nil {
			return errors.New("unknown channel failure")
		}
		return f.Err
	case transport.ClosedFailure:
		return &CloseError{Code: f.Code, Reason: f.Reason}
	case transport.MultiFailure:
		return &MultiError{Messages: f.Messages}
	default:
		return fmt.Errorf("unknown channel failure %T", failure)
	}
}
