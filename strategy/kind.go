package strategy

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/xmltree"
)

// Kind selects a wire format.
type Kind int

const (
	// VersionA writes scalar fields as attributes.
	VersionA Kind = 1
	// VersionB writes every field as a child element.
	VersionB Kind = 2
)

// Kinds lists the supported formats.
var Kinds = []Kind{VersionA, VersionB}

// ParseKind maps a wire version ("1.0", "2") or number to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSpace(s) {
	case "1", "1.0", "A", "a":
		return VersionA, nil
	case "2", "2.0", "B", "b":
		return VersionB, nil
	}
	return 0, fmt.Errorf("unknown format version %q", s)
}

// Version is the value of the root version attribute.
func (k Kind) Version() string {
	switch k {
	case VersionA:
		return "1.0"
	case VersionB:
		return "2.0"
	}
	return ""
}

// String returns the kind name with its wire version.
func (k Kind) String() string {
	switch k {
	case VersionA:
		return "version A"
	case VersionB:
		return "version B"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is a known format.
func (k Kind) Valid() bool {
	return k == VersionA || k == VersionB
}

// Codec returns the leaf codec of k.
func (k Kind) Codec() (LeafCodec, bool) {
	switch k {
	case VersionA:
		return attributeCodec{}, true
	case VersionB:
		return elementCodec{}, true
	}
	return nil, false
}

// LeafCodec is the per-format part of the walk: how scalars are written and read, and
// which identity markers a node carries.
type LeafCodec interface {
	// MarkOccurrence may attach an identity attribute to the node of one model value.
	MarkOccurrence(node *xmltree.Element, value model.Model)
	// EncodeScalar writes a scalar field under node.
	EncodeScalar(node *xmltree.Element, f *model.Field)
	// DecodeAttrs applies attribute-carried scalars of node to m. When own is set only
	// fields declared by m's own type are considered.
	DecodeAttrs(m model.Model, node *xmltree.Element, own bool) error
	// Updatable reports whether update-in-place is supported.
	Updatable() bool
}

// attributeCodec is the Version A leaf codec.
type attributeCodec struct{}

func (attributeCodec) Updatable() bool { return true }

func (attributeCodec) MarkOccurrence(node *xmltree.Element, value model.Model) {
	if value == nil {
		return
	}
	id := value.ID()
	if l, ok := model.AsLink(value); ok && l.Linked() != nil {
		id = l.Linked().ID()
	}
	if id.Persisted() && !id.Composite() {
		node.SetAttr("Id", id.String())
	}
}

func (attributeCodec) EncodeScalar(node *xmltree.Element, f *model.Field) {
	var text string
	if f.Multiple() {
		values := f.Values()
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = model.FormatScalar(v)
		}
		text = strings.Join(parts, ",")
	} else {
		text = model.FormatScalar(f.Value())
	}
	node.SetAttr(f.Name(), scrubControl(text))
}

func (attributeCodec) DecodeAttrs(m model.Model, node *xmltree.Element, own bool) error {
	for _, attr := range node.Attrs {
		if isMarkup(attr.Name) {
			continue
		}
		spec, ok := lookupSpec(m, attr.Name, own)
		// Unknown attributes are dropped; only unknown child elements are rejected.
		if !ok || spec.IsModelValued() {
			continue
		}
		value, err := decodeAttr(spec, attr.Value)
		if err != nil {
			return fieldError(err, m.TypeName(), attr.Name)
		}
		if err := setField(m, attr.Name, value); err != nil {
			return err
		}
	}
	return nil
}

func decodeAttr(spec model.FieldSpec, text string) (any, error) {
	if !spec.Multiple {
		return spec.DecodeText(text)
	}
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, ",")
	values := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := spec.DecodeText(p)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// elementCodec is the Version B leaf codec.
type elementCodec struct{}

func (elementCodec) Updatable() bool { return false }

func (elementCodec) MarkOccurrence(*xmltree.Element, model.Model) {}

func (elementCodec) EncodeScalar(node *xmltree.Element, f *model.Field) {
	values := f.Values()
	if len(values) == 0 {
		node.AppendElement(f.Name())
		return
	}
	for _, v := range values {
		el := node.AppendElement(f.Name())
		if text := model.FormatScalar(v); text != "" {
			el.AppendText(text)
		}
	}
}

func (elementCodec) DecodeAttrs(model.Model, *xmltree.Element, bool) error { return nil }

// scrubControl replaces characters XML 1.0 cannot carry with U+FFFD.
func scrubControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return '\uFFFD'
		}
		return r
	}, s)
}

// isMarkup reports attributes that belong to the wire format rather than a field.
func isMarkup(name string) bool {
	return name == "xmlns" || strings.HasPrefix(name, "xmlns:") || strings.HasPrefix(name, "xlink:")
}
