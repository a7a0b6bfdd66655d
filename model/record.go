package model

import "time"

// Record is the generic Model implementation backed by a Type.
type Record struct {
	typ      *Type
	id       ID
	modified time.Time
	fields   map[string]*Field
}

var (
	_ Model       = (*Record)(nil)
	_ Timestamped = (*Record)(nil)
	_ Link        = (*LinkRecord)(nil)
)

// NewRecord returns an empty record of type t.
func NewRecord(t *Type) *Record {
	r := &Record{
		typ:    t,
		fields: make(map[string]*Field, len(t.fields)),
	}
	for _, spec := range t.fields {
		r.fields[spec.Name] = NewField(spec)
	}
	return r
}

// TypeName returns the name of the record type.
func (r *Record) TypeName() string { return r.typ.Name() }
// Type returns the declaration the record was built from.
func (r *Record) Type() *Type { return r.typ }
// ID returns a copy of the record id.
func (r *Record) ID() ID { return append(ID(nil), r.id...) }

// SetID marks the record as persisted under the given identifier parts.
func (r *Record) SetID(parts ...string) *Record {
	r.id = append(ID(nil), parts...)
	return r
}

// Modified returns the last-modified time used as the cache freshness token.
func (r *Record) Modified() time.Time { return r.modified }

// SetModified updates the last-modified time.
func (r *Record) SetModified(t time.Time) *Record {
	r.modified = t
	return r
}

// Describe returns the type's field names in declaration order.
func (r *Record) Describe() []string {
	return r.typ.FieldNames()
}

// Field returns a field owned by the record.
func (r *Record) Field(name string) (*Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// MustSet sets a field through the type's accessor table and panics on failure.
// It is meant for fixtures and examples.
func (r *Record) MustSet(name string, value any) *Record {
	a, ok := r.typ.Accessor(name)
	if !ok {
		panic("model: " + r.typ.Name() + " has no field " + name)
	}
	if err := a.Set(r, value); err != nil {
		panic(err)
	}
	return r
}

// LinkRecord wraps a target model; fields it does not own are tunneled to the target.
type LinkRecord struct {
	*Record
	linked Model
}

// NewLinkRecord returns a link of type t around target.
func NewLinkRecord(t *Type, target Model) *LinkRecord {
	return &LinkRecord{Record: NewRecord(t), linked: target}
}

// Linked returns the wrapped target model.
func (l *LinkRecord) Linked() Model { return l.linked }
// SetLinked replaces the wrapped target model.
func (l *LinkRecord) SetLinked(m Model) { l.linked = m }
// DescribeUntunneled lists only the fields the link type declares itself.
func (l *LinkRecord) DescribeUntunneled() []string {
	return l.Record.Describe()
}

// Describe returns the link's own fields followed by the target's fields.
func (l *LinkRecord) Describe() []string {
	names := l.Record.Describe()
	if l.linked == nil {
		return names
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		seen[n] = struct{}{}
	}
	for _, n := range l.linked.Describe() {
		if _, dup := seen[n]; !dup {
			names = append(names, n)
		}
	}
	return names
}

// Field resolves own fields first, then the target's.
func (l *LinkRecord) Field(name string) (*Field, bool) {
	if f, ok := l.Record.Field(name); ok {
		return f, true
	}
	if l.linked == nil {
		return nil, false
	}
	return l.linked.Field(name)
}

// MustSet sets an own or tunneled field and panics on failure.
func (l *LinkRecord) MustSet(name string, value any) *LinkRecord {
	a, ok := AccessorFor(l, name)
	if !ok {
		panic("model: " + l.TypeName() + " has no field " + name)
	}
	if err := a.Set(l, value); err != nil {
		panic(err)
	}
	return l
}

// SetID marks the link as persisted.
func (l *LinkRecord) SetID(parts ...string) *LinkRecord {
	l.Record.SetID(parts...)
	return l
}
