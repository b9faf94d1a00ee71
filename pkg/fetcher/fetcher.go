// Package fetcher dispatches GraphQL requests to the transport matching their operation type.
//
// Queries and mutations are posted over HTTP and resolve to a single *ExecutionResult, or a
// *RawResult when the response body is not a JSON object. Subscriptions are registered on a
// shared duplex Channel and resolve to a *Subscribable.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphiql-fetcher/pkg/document"
	"github.com/wundergraph/graphiql-fetcher/pkg/fetcher/httptransport"
	"github.com/wundergraph/graphiql-fetcher/pkg/transport"
)

// Channel is the shared duplex connection subscriptions are registered on.
// Register must not block; events for the registration are delivered to sink.
type Channel interface {
	Register(body transport.Body, sink transport.Sink) (deregister func())
}

type Request struct {
	Query string
	// OperationName may be empty when the document contains exactly one operation
	OperationName string
	Variables     map[string]any
}

// StatusPolicy reports whether a response with statusCode is handed to the caller.
// Rejected responses fail with a *TransportError.
type StatusPolicy func(statusCode int) bool

// AcceptAnyStatus hands every response to the caller, GraphQL servers report errors in 4xx bodies.
func AcceptAnyStatus(int) bool {
	return true
}

func RejectNon2xx(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

type Fetcher struct {
	http         *httptransport.Client
	channel      Channel
	statusPolicy StatusPolicy
	log          abstractlogger.Logger
}

type opts struct {
	log          abstractlogger.Logger
	httpClient   *http.Client
	header       http.Header
	statusPolicy StatusPolicy
}

type Option func(*opts)

func WithLogger(log abstractlogger.Logger) Option {
	return func(o *opts) {
		o.log = log
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *opts) {
		o.httpClient = client
	}
}

// WithHeader sets headers sent with every HTTP request.
func WithHeader(header http.Header) Option {
	return func(o *opts) {
		o.header = header
	}
}

func WithStatusPolicy(policy StatusPolicy) Option {
	return func(o *opts) {
		o.statusPolicy = policy
	}
}

// New creates a Fetcher posting to endpoint. channel may be nil when subscriptions are not needed.
func New(endpoint string, channel Channel, options ...Option) *Fetcher {
	op := &opts{
		log:          abstractlogger.NoopLogger,
		httpClient:   httptransport.DefaultHTTPClient,
		statusPolicy: AcceptAnyStatus,
	}
	for _, option := range options {
		option(op)
	}

	return &Fetcher{
		http: httptransport.New(endpoint,
			httptransport.WithHTTPClient(op.httpClient),
			httptransport.WithHeader(op.header),
			httptransport.WithLogger(op.log),
		),
		channel:      channel,
		statusPolicy: op.statusPolicy,
		log:          op.log,
	}
}

// Dispatch parses the request, resolves its operation and executes it.
// Subscriptions return a *Subscribable immediately, queries and mutations block until the response is read.
func (f *Fetcher) Dispatch(ctx context.Context, request Request) (Result, error) {
	doc, err := document.Parse(request.Query)
	if err != nil {
		return nil, err
	}

	operation, err := doc.ResolveOperation(request.OperationName)
	if err != nil {
		return nil, err
	}

	body := transport.Body{
		Query:         request.Query,
		OperationName: request.OperationName,
	}
	if request.Variables != nil {
		body.Variables, err = json.Marshal(request.Variables)
		if err != nil {
			return nil, fmt.Errorf("encode variables: %w", err)
		}
	}

	f.log.Debug("fetcher: dispatch",
		abstractlogger.String("operationType", string(operation.OperationType)),
		abstractlogger.String("operationName", operation.Name),
	)

	if operation.OperationType == document.OperationTypeSubscription {
		if f.channel == nil {
			return nil, ErrNoSubscriptionChannel
		}
		return &Subscribable{
			channel: f.channel,
			body:    body,
			log:     f.log,
		}, nil
	}

	return f.execute(ctx, body)
}

func (f *Fetcher) execute(ctx context.Context, body transport.Body) (Result, error) {
	response, err := f.http.Do(ctx, body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if !f.statusPolicy(response.StatusCode) {
		return nil, &TransportError{
			StatusCode: response.StatusCode,
			Body:       response.Body,
		}
	}

	result := decodeResponse(response.Body, response.StatusCode)
	if _, ok := result.(*RawResult); ok {
		f.log.Debug("fetcher: response body is not a JSON object, returning raw result",
			abstractlogger.Int("status", response.StatusCode),
		)
	}
	return result, nil
}
