// Package definitionlookup maps a cursor position inside a GraphQL document to the
// operation or fragment definition enclosing it.
package definitionlookup

import (
	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphiql-fetcher/pkg/document"
)

// KindFragment is the Identifier kind of fragment definitions.
const KindFragment = "fragment"

// Position is a [Start,End] range in the character offset space of document spans.
type Position struct {
	Start int
	End   int
}

// Identifier names a definition for the UI: operation type (or "fragment") plus name.
type Identifier struct {
	Kind string
	Name string
}

// ElementID renders the identifier using the "<kind>-<name>" naming convention of the explorer elements.
func (i Identifier) ElementID() string {
	return i.Kind + "-" + i.Name
}

// Locator is implemented by the UI shell, it scrolls to the element with the given id.
// ok is false when no element exists for the id.
type Locator interface {
	ScrollTo(elementID string) (ok bool)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(elementID string) bool

func (f LocatorFunc) ScrollTo(elementID string) bool {
	return f(elementID)
}

type Resolver struct {
	log abstractlogger.Logger
}

type Option func(r *Resolver)

func WithLogger(log abstractlogger.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

func NewResolver(options ...Option) *Resolver {
	r := &Resolver{
		log: abstractlogger.NoopLogger,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// ResolveDefinitionAt is a shortcut for NewResolver().ResolveDefinitionAt.
func ResolveDefinitionAt(doc *document.Document, position Position) (Identifier, bool) {
	return NewResolver().ResolveDefinitionAt(doc, position)
}

// ResolveDefinitionAt returns the identifier of the first definition whose span fully contains position.
// Definitions without a span are skipped. ok is false when nothing contains the position.
func (r *Resolver) ResolveDefinitionAt(doc *document.Document, position Position) (identifier Identifier, ok bool) {
	if doc == nil {
		return Identifier{}, false
	}
	for i := range doc.Definitions {
		definition := doc.Definitions[i]
		if definition.Span == nil {
			r.log.Debug("definitionlookup: definition without span skipped",
				abstractlogger.String("name", definition.Name),
				abstractlogger.String("kind", definition.Kind.String()),
			)
			continue
		}
		if definition.Span.Contains(position.Start, position.End) {
			return IdentifierFor(definition), true
		}
	}
	r.log.Debug("definitionlookup: no definition at position",
		abstractlogger.Int("start", position.Start),
		abstractlogger.Int("end", position.End),
	)
	return Identifier{}, false
}

// JumpToDefinition resolves position and asks locator to scroll to the matching element.
// Both a position outside every definition and a missing element are silent no-ops.
func (r *Resolver) JumpToDefinition(doc *document.Document, position Position, locator Locator) bool {
	identifier, ok := r.ResolveDefinitionAt(doc, position)
	if !ok {
		return false
	}
	elementID := identifier.ElementID()
	if !locator.ScrollTo(elementID) {
		r.log.Debug("definitionlookup: no element for definition",
			abstractlogger.String("elementID", elementID),
		)
		return false
	}
	return true
}

// IdentifierFor builds the identifier of a definition.
func IdentifierFor(definition document.Definition) Identifier {
	name := definition.Name
	if name == "" {
		name = document.UnknownName
	}
	if definition.Kind == document.FragmentDefinition {
		return Identifier{Kind: KindFragment, Name: name}
	}
	kind := string(definition.OperationType)
	if kind == "" {
		kind = string(document.OperationTypeQuery)
	}
	return Identifier{Kind: kind, Name: name}
}
