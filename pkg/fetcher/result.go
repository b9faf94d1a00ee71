package fetcher

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Result is one of *ExecutionResult, *RawResult or *Subscribable.
type Result interface {
	result()
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type GraphQLError struct {
	Message    string          `json:"message"`
	Locations  []Location      `json:"locations,omitempty"`
	Path       []any           `json:"path,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// ExecutionResult is a structured GraphQL response. Nil Data and Errors mean null.
type ExecutionResult struct {
	Data       json.RawMessage `json:"data"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// RawResult is returned when a one-shot response body is not a JSON object.
// It is a degraded result, not a failure.
type RawResult struct {
	Body       string
	StatusCode int
}

func (*ExecutionResult) result() {}
func (*RawResult) result()       {}
func (*Subscribable) result()    {}

const malformedPayloadMessage = "malformed subscription payload"

func decodeResponse(body []byte, statusCode int) Result {
	if executionResult, ok := decodeExecutionResult(body); ok {
		return executionResult
	}
	return &RawResult{
		Body:       string(body),
		StatusCode: statusCode,
	}
}

func decodeStreamPayload(payload []byte) *ExecutionResult {
	if executionResult, ok := decodeExecutionResult(payload); ok {
		return executionResult
	}
	return &ExecutionResult{
		Errors: []GraphQLError{{Message: malformedPayloadMessage}},
	}
}

func decodeExecutionResult(data []byte) (*ExecutionResult, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil, false
	}

	out := &ExecutionResult{}
	if value := parsed.Get("data"); value.Exists() && value.Type != gjson.Null {
		out.Data = json.RawMessage(value.Raw)
	}
	if value := parsed.Get("extensions"); value.Exists() && value.Type != gjson.Null {
		out.Extensions = json.RawMessage(value.Raw)
	}
	if value := parsed.Get("errors"); value.IsArray() {
		out.Errors = []GraphQLError{}
		value.ForEach(func(_, element gjson.Result) bool {
			out.Errors = append(out.Errors, decodeGraphQLError(element))
			return true
		})
	}
	return out, true
}

func decodeGraphQLError(element gjson.Result) GraphQLError {
	var graphQLError GraphQLError
	if element.IsObject() && json.Unmarshal([]byte(element.Raw), &graphQLError) == nil {
		return graphQLError
	}
	if message := element.Get("message"); message.Exists() {
		return GraphQLError{Message: message.String()}
	}
	return GraphQLError{Message: element.String()}
}
