// Package document parses GraphQL executable documents into their top-level definitions,
// keeping the source span of every definition so callers can map text positions back to definitions.
package document

import (
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/wundergraph/graphiql-fetcher/pkg/operationreport"
)

// UnknownName identifies anonymous definitions outside of the document.
const UnknownName = "unknown"

type DefinitionKind int

const (
	UnknownDefinitionKind DefinitionKind = iota
	OperationDefinition
	FragmentDefinition
)

func (k DefinitionKind) String() string {
	switch k {
	case OperationDefinition:
		return "OperationDefinition"
	case FragmentDefinition:
		return "FragmentDefinition"
	default:
		return "Unknown"
	}
}

type OperationType string

const (
	OperationTypeUnknown      OperationType = ""
	OperationTypeQuery        OperationType = "query"
	OperationTypeMutation     OperationType = "mutation"
	OperationTypeSubscription OperationType = "subscription"
)

// Span is a half open [Start,End) range of character offsets into the document text.
type Span struct {
	Start int
	End   int
}

// Contains reports whether [start,end] lies fully inside the span.
func (s Span) Contains(start, end int) bool {
	return s.Start <= start && s.End >= end
}

type Definition struct {
	Kind DefinitionKind
	// OperationType is only set for operation definitions
	OperationType OperationType
	// Name is empty for anonymous operations
	Name string
	// Span is nil when the position of the definition could not be determined
	Span *Span
}

type Document struct {
	Text        string
	Definitions []Definition
}

// Parse parses text as an executable GraphQL document.
// Definitions are returned in document order.
func Parse(text string) (*Document, error) {
	source := &ast.Source{
		Name:  "document",
		Input: text,
	}

	queryDocument, err := parser.ParseQuery(source)
	if err != nil {
		return nil, &ParseError{Report: operationreport.FromError(err)}
	}

	ends, lexErr := topLevelBlockEnds(source)
	if lexErr != nil {
		return nil, &ParseError{Report: operationreport.FromError(lexErr)}
	}

	type positioned struct {
		definition Definition
		start      int
	}

	items := make([]positioned, 0, len(queryDocument.Operations)+len(queryDocument.Fragments))
	for _, operation := range queryDocument.Operations {
		item := positioned{
			definition: Definition{
				Kind:          OperationDefinition,
				OperationType: operationType(operation.Operation),
				Name:          operation.Name,
			},
			start: -1,
		}
		if operation.Position != nil {
			item.start = operation.Position.Start
		}
		items = append(items, item)
	}
	for _, fragment := range queryDocument.Fragments {
		item := positioned{
			definition: Definition{
				Kind: FragmentDefinition,
				Name: fragment.Name,
			},
			start: -1,
		}
		if fragment.Position != nil {
			item.start = fragment.Position.Start
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].start < items[j].start
	})

	doc := &Document{
		Text:        text,
		Definitions: make([]Definition, 0, len(items)),
	}

	next := 0
	for _, item := range items {
		if item.start >= 0 {
			for next < len(ends) && ends[next] <= item.start {
				next++
			}
			if next < len(ends) {
				item.definition.Span = &Span{Start: item.start, End: ends[next]}
				next++
			}
		}
		doc.Definitions = append(doc.Definitions, item.definition)
	}

	return doc, nil
}

// Operations returns the operation definitions in document order.
func (d *Document) Operations() []Definition {
	out := make([]Definition, 0, len(d.Definitions))
	for _, definition := range d.Definitions {
		if definition.Kind == OperationDefinition {
			out = append(out, definition)
		}
	}
	return out
}

// ResolveOperation selects the operation to execute.
// A non empty name must match a named operation, an empty name requires the document to contain exactly one operation.
func (d *Document) ResolveOperation(name string) (Definition, error) {
	operations := d.Operations()
	if name != "" {
		for _, operation := range operations {
			if operation.Name == name {
				return operation, nil
			}
		}
		return Definition{}, &UnknownOperationError{OperationName: name}
	}
	if len(operations) != 1 {
		return Definition{}, &AmbiguousOperationError{OperationCount: len(operations)}
	}
	return operations[0], nil
}

// topLevelBlockEnds returns the end offsets of every selection set that closes a top-level definition.
// Braces inside parentheses (object values in variable defaults or directive arguments) never close a definition.
func topLevelBlockEnds(source *ast.Source) ([]int, error) {
	lex := lexer.New(source)
	var (
		ends   []int
		braces int
		parens int
	)
	for {
		token, err := lex.ReadToken()
		if err != nil {
			return nil, err
		}
		switch token.Kind {
		case lexer.EOF:
			return ends, nil
		case lexer.ParenL:
			parens++
		case lexer.ParenR:
			parens--
		case lexer.BraceL:
			braces++
		case lexer.BraceR:
			braces--
			if braces == 0 && parens == 0 {
				ends = append(ends, token.Pos.End)
			}
		}
	}
}

func operationType(operation ast.Operation) OperationType {
	switch operation {
	case ast.Query, "":
		return OperationTypeQuery
	case ast.Mutation:
		return OperationTypeMutation
	case ast.Subscription:
		return OperationTypeSubscription
	default:
		return OperationTypeUnknown
	}
}
