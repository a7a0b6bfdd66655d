package model

import "fmt"

// Accessor is one row of a type's field-access table.
type Accessor struct {
	Get func(m Model) any
	Set func(m Model, value any) error
	Add func(m Model, value any) error
}

// Type describes a model type: its name, kind, ordered fields and accessor table.
// A Type is immutable once built.
type Type struct {
	name      string
	kind      Kind
	target    string
	fields    []FieldSpec
	index     map[string]int
	accessors map[string]Accessor
}

// NewType builds a model type with the given ordered field declarations.
func NewType(name string, kind Kind, fields ...FieldSpec) *Type {
	t := &Type{
		name:      name,
		kind:      kind,
		fields:    append([]FieldSpec(nil), fields...),
		index:     make(map[string]int, len(fields)),
		accessors: make(map[string]Accessor, len(fields)),
	}
	for i, spec := range t.fields {
		t.index[spec.Name] = i
		t.accessors[spec.Name] = buildAccessor(spec)
	}
	return t
}

// NewLinkType builds a link wrapper type around target. fields are the link's own
// (untunneled) fields.
func NewLinkType(name, target string, fields ...FieldSpec) *Type {
	t := NewType(name, LinkKind, fields...)
	t.target = target
	return t
}

// Name is the type name, also used as the element name of its models.
func (t *Type) Name() string { return t.name }

// Kind reports whether models of t may be referenced, are always inlined, or wrap
// another model.
func (t *Type) Kind() Kind { return t.kind }

// Target is the linked type name for link types.
func (t *Type) Target() string { return t.target }

// Fields returns a copy of the ordered field declarations.
func (t *Type) Fields() []FieldSpec {
	return append([]FieldSpec(nil), t.fields...)
}

// FieldNames returns the declared field names in order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.fields))
	for i, spec := range t.fields {
		names[i] = spec.Name
	}
	return names
}

// Spec returns the declaration of a field owned by this type.
func (t *Type) Spec(name string) (FieldSpec, bool) {
	i, ok := t.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return t.fields[i], true
}

// Accessor returns the access row for a field owned by this type.
func (t *Type) Accessor(name string) (Accessor, bool) {
	a, ok := t.accessors[name]
	return a, ok
}

func buildAccessor(spec FieldSpec) Accessor {
	name := spec.Name
	field := func(m Model) (*Field, error) {
		f, ok := m.Field(name)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", m.TypeName(), name, ErrNoSuchField)
		}
		return f, nil
	}

	a := Accessor{
		Get: func(m Model) any {
			f, err := field(m)
			if err != nil {
				return nil
			}
			return f.Value()
		},
		Set: func(m Model, value any) error {
			f, err := field(m)
			if err != nil {
				return err
			}
			return f.Set(value)
		},
		Add: func(m Model, value any) error {
			f, err := field(m)
			if err != nil {
				return err
			}
			return f.Add(value)
		},
	}
	if spec.setter != nil {
		a.Set = func(m Model, value any) error {
			return spec.setter(m, value)
		}
	}
	return a
}

// AccessorFor resolves the accessor for name on m, following links into their target.
func AccessorFor(m Model, name string) (Accessor, bool) {
	if m == nil || m.Type() == nil {
		return Accessor{}, false
	}
	if a, ok := m.Type().Accessor(name); ok {
		return a, true
	}
	if l, ok := AsLink(m); ok && l.Linked() != nil {
		target := l.Linked()
		a, ok := AccessorFor(target, name)
		if !ok {
			return Accessor{}, false
		}
		return Accessor{
			Get: func(Model) any { return a.Get(target) },
			Set: func(_ Model, v any) error { return a.Set(target, v) },
			Add: func(_ Model, v any) error { return a.Add(target, v) },
		}, true
	}
	return Accessor{}, false
}

// SpecFor resolves a field declaration on m, following links into their target.
func SpecFor(m Model, name string) (FieldSpec, bool) {
	if m == nil || m.Type() == nil {
		return FieldSpec{}, false
	}
	if spec, ok := m.Type().Spec(name); ok {
		return spec, true
	}
	if l, ok := AsLink(m); ok && l.Linked() != nil {
		return SpecFor(l.Linked(), name)
	}
	return FieldSpec{}, false
}
