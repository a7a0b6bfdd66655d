package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScalarKind selects how wire text is converted into a scalar value.
type ScalarKind int

const (
	StringScalar ScalarKind = iota
	TimeScalar
	IntScalar
	BoolScalar
)

// FieldSpec declares one field of a Type.
type FieldSpec struct {
	Name     string
	Multiple bool
	// ValueModel is the type name of nested models; empty for scalar fields.
	ValueModel string
	Scalar     ScalarKind

	setter Setter
}

// Setter overrides the default Set behaviour of a field.
type Setter func(m Model, value any) error

// FieldOption customizes a FieldSpec.
type FieldOption func(*FieldSpec)

// Multiple marks the field as list-valued.
func Multiple() FieldOption {
	return func(s *FieldSpec) { s.Multiple = true }
}

// Times makes the field decode RFC 3339 text into time.Time.
func Times() FieldOption {
	return func(s *FieldSpec) { s.Scalar = TimeScalar }
}

// Ints makes the field decode text into int64.
func Ints() FieldOption {
	return func(s *FieldSpec) { s.Scalar = IntScalar }
}

// Bools makes the field decode text into bool.
func Bools() FieldOption {
	return func(s *FieldSpec) { s.Scalar = BoolScalar }
}

// WithSetter installs a custom setter in the type's accessor table.
func WithSetter(fn Setter) FieldOption {
	return func(s *FieldSpec) { s.setter = fn }
}

// Scalar declares a scalar field.
func Scalar(name string, opts ...FieldOption) FieldSpec {
	spec := FieldSpec{Name: name}
	for _, opt := range opts {
		if opt != nil {
			opt(&spec)
		}
	}
	return spec
}

// Nested declares a model-valued field holding models of valueModel.
func Nested(name, valueModel string, opts ...FieldOption) FieldSpec {
	spec := Scalar(name, opts...)
	spec.ValueModel = valueModel
	return spec
}

// IsModelValued reports whether the field holds nested models.
func (s FieldSpec) IsModelValued() bool {
	return s.ValueModel != ""
}

// DecodeText converts wire text into the field's scalar value. Empty text decodes to nil.
func (s FieldSpec) DecodeText(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	switch s.Scalar {
	case TimeScalar:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.Name, err)
		}
		return t, nil
	case IntScalar:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.Name, err)
		}
		return n, nil
	case BoolScalar:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.Name, err)
		}
		return b, nil
	default:
		return text, nil
	}
}

// Field is a named slot on a model. It keeps a normalized value list; single-valued
// fields hold at most one element.
type Field struct {
	spec   FieldSpec
	values []any
}

// NewField returns an empty field for spec.
func NewField(spec FieldSpec) *Field {
	return &Field{spec: spec}
}

// Name returns the declared field name.
func (f *Field) Name() string { return f.spec.Name }

// Multiple reports whether the field holds a list.
func (f *Field) Multiple() bool { return f.spec.Multiple }

// ValueModel names the type of nested models, or is empty for scalar fields.
func (f *Field) ValueModel() string { return f.spec.ValueModel }

// Spec returns the declaration the field was built from.
func (f *Field) Spec() FieldSpec { return f.spec }

// IsModelValued reports whether the field holds nested models.
func (f *Field) IsModelValued() bool { return f.spec.IsModelValued() }

// Value returns the single value (or nil) for single-valued fields and a copy of the
// value list for multi-valued ones.
func (f *Field) Value() any {
	if f.spec.Multiple {
		return f.Values()
	}
	if len(f.values) == 0 {
		return nil
	}
	return f.values[0]
}

// Values returns a copy of the normalized value list.
func (f *Field) Values() []any {
	return append([]any(nil), f.values...)
}

// Models returns the model values in order. Nil occurrences are kept.
func (f *Field) Models() []Model {
	out := make([]Model, 0, len(f.values))
	for _, v := range f.values {
		m, _ := v.(Model)
		out = append(out, m)
	}
	return out
}

// IsEmpty reports whether the value is nil, blank after trimming, or an empty list.
func (f *Field) IsEmpty() bool {
	if len(f.values) == 0 {
		return true
	}
	if len(f.values) > 1 {
		return false
	}
	switch v := f.values[0].(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

// Set replaces the field value. Slices are spread into the value list.
func (f *Field) Set(value any) error {
	values := normalize(value)
	for _, v := range values {
		if err := f.check(v); err != nil {
			return err
		}
	}
	if !f.spec.Multiple && len(values) > 1 {
		return fmt.Errorf("field %s: %d values for single-valued field", f.spec.Name, len(values))
	}
	f.values = values
	return nil
}

// Add appends a value; on single-valued fields it replaces the current one.
func (f *Field) Add(value any) error {
	if err := f.check(value); err != nil {
		return err
	}
	if !f.spec.Multiple {
		f.values = []any{value}
		return nil
	}
	f.values = append(f.values, value)
	return nil
}

func (f *Field) check(v any) error {
	if v == nil {
		return nil
	}
	_, isModel := v.(Model)
	if f.spec.IsModelValued() != isModel {
		return fmt.Errorf("field %s: %w", f.spec.Name, ErrFieldKind)
	}
	return nil
}

func normalize(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return append([]any(nil), v...)
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []Model:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return []any{v}
	}
}

// FormatScalar renders a scalar value as wire text.
func FormatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(time.RFC3339Nano)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
