package document

import (
	"fmt"

	"github.com/wundergraph/graphiql-fetcher/pkg/operationreport"
)

// ParseError is returned when the document text is not a valid executable document.
type ParseError struct {
	Report operationreport.Report
}

func (e *ParseError) Error() string {
	return "parse document: " + operationreport.FirstExternalErrorMessage(&e.Report)
}

func (e *ParseError) Unwrap() error {
	return e.Report
}

// AmbiguousOperationError is returned when no operation name was given
// and the document does not contain exactly one operation.
type AmbiguousOperationError struct {
	OperationCount int
}

func (e *AmbiguousOperationError) Error() string {
	if e.OperationCount == 0 {
		return "document does not contain any operation"
	}
	return fmt.Sprintf("document contains %d operations, an operation name is required", e.OperationCount)
}

// UnknownOperationError is returned when the requested operation name matches no operation.
type UnknownOperationError struct {
	OperationName string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation named %q", e.OperationName)
}
