package model

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnknownType is returned by Registry.New when no type is registered under a name.
	ErrUnknownType = errors.New("unknown model type")
	// ErrFieldKind is returned when a scalar field receives a model or a model-valued field
	// receives a scalar.
	ErrFieldKind = errors.New("field value kind mismatch")
	// ErrNoSuchField is returned by accessors addressed with a name the type does not declare.
	ErrNoSuchField = errors.New("no such field")
)

// Kind tells the serializer how a model may be represented when it is a field value.
type Kind int

const (
	// Linkable models can be written as references once persisted.
	Linkable Kind = iota
	// Dependent models are always embedded.
	Dependent
	// LinkKind marks a link wrapper around another model.
	LinkKind
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case Linkable:
		return "linkable"
	case Dependent:
		return "dependent"
	case LinkKind:
		return "link"
	default:
		return "unknown"
	}
}

// ID identifies a persisted model. An empty ID means the model was never stored;
// more than one part means the identifier is composite.
type ID []string

// Persisted reports whether the ID carries at least one part.
func (id ID) Persisted() bool {
	return len(id) > 0
}

// Composite reports whether the ID has more than one part.
func (id ID) Composite() bool {
	return len(id) > 1
}

// String joins the id parts with a slash.
func (id ID) String() string {
	return strings.Join(id, ",")
}

// Model is the uniform capability set the serializer relies on.
type Model interface {
	TypeName() string
	Type() *Type
	// Describe returns the field names in their stable serialization order.
	Describe() []string
	Field(name string) (*Field, bool)
	ID() ID
}

// Link wraps another model and adds fields of its own (role, sort order, ...).
// Describe on a link includes the tunneled fields of the linked model.
type Link interface {
	Model
	Linked() Model
	SetLinked(Model)
	// DescribeUntunneled returns only the link's own fields.
	DescribeUntunneled() []string
}

// Timestamped models expose the freshness token used for document caching.
type Timestamped interface {
	Modified() time.Time
}

// IsDependent reports whether m must always be embedded.
func IsDependent(m Model) bool {
	if m == nil || m.Type() == nil {
		return false
	}
	return m.Type().Kind() == Dependent
}

// AsLink returns m as a Link when it is a link wrapper.
func AsLink(m Model) (Link, bool) {
	l, ok := m.(Link)
	return l, ok
}
