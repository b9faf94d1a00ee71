// Package operationreport helps generating the errors object for a GraphQL Operation.
package operationreport

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

type Report struct {
	InternalErrors []error
	ExternalErrors []ExternalError
}

func (r Report) Error() string {
	out := ""
	for i := range r.InternalErrors {
		if i != 0 {
			out += "\n"
		}
		out += fmt.Sprintf("internal: %s", r.InternalErrors[i].Error())
	}
	if len(out) > 0 && len(r.ExternalErrors) > 0 {
		out += "\n"
	}
	for i := range r.ExternalErrors {
		if i != 0 {
			out += "\n"
		}
		out += fmt.Sprintf("external: %s, locations: %+v", r.ExternalErrors[i].Message, r.ExternalErrors[i].Locations)
	}
	return out
}

func (r *Report) HasErrors() bool {
	return len(r.InternalErrors) > 0 || len(r.ExternalErrors) > 0
}

func (r *Report) Reset() {
	r.InternalErrors = r.InternalErrors[:0]
	r.ExternalErrors = r.ExternalErrors[:0]
}

func (r *Report) AddInternalError(err error) {
	r.InternalErrors = append(r.InternalErrors, err)
}

func (r *Report) AddExternalError(gqlError ExternalError) {
	r.ExternalErrors = append(r.ExternalErrors, gqlError)
}

// ExternalError is an error that is safe to show to the author of the document.
type ExternalError struct {
	Message   string     `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

func (e ExternalError) Error() string {
	return e.Message
}

// Location is a 1-based line/column pair inside the document.
type Location struct {
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// FromError turns a parser error into a Report.
// gqlparser errors (single or list) become external errors, everything else an internal error.
func FromError(err error) Report {
	var report Report
	if err == nil {
		return report
	}

	var list gqlerror.List
	if errors.As(err, &list) {
		for i := range list {
			report.AddExternalError(externalErrorFromGQLError(list[i]))
		}
		return report
	}

	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		report.AddExternalError(externalErrorFromGQLError(gqlErr))
		return report
	}

	report.AddInternalError(err)
	return report
}

func externalErrorFromGQLError(err *gqlerror.Error) ExternalError {
	out := ExternalError{
		Message: err.Message,
	}
	for _, location := range err.Locations {
		out.Locations = append(out.Locations, Location{
			Line:   uint32(location.Line),
			Column: uint32(location.Column),
		})
	}
	return out
}

type FormatExternalErrorMessage func(report *Report) string

func ExternalErrorMessage(err error, formatFunction FormatExternalErrorMessage) (message string, ok bool) {
	var report Report
	if errors.As(err, &report) {
		msg := formatFunction(&report)
		return msg, true
	}
	return "", false
}

// FirstExternalErrorMessage renders the first external error as "message (line:column)".
func FirstExternalErrorMessage(report *Report) string {
	if len(report.ExternalErrors) == 0 {
		return report.Error()
	}
	first := report.ExternalErrors[0]
	if len(first.Locations) == 0 {
		return first.Message
	}
	return fmt.Sprintf("%s (%d:%d)", first.Message, first.Locations[0].Line, first.Locations[0].Column)
}
