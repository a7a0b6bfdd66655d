// Package xmltree holds the ordered element tree the serialization strategies build
// and read, together with its writer and parser.
package xmltree

import "strings"

// XLinkNamespace is the namespace bound to the xlink prefix on every document root.
const XLinkNamespace = "http://www.w3.org/1999/xlink"

// Node is a child of an Element: either *Element or *CharData.
type Node interface {
	node()
}

// Attr is a single attribute. Prefixed names keep their prefix ("xlink:href").
type Attr struct {
	Name  string
	Value string
}

// CharData is a text child. CDATA controls how the writer emits it.
type CharData struct {
	Data  string
	CDATA bool
}

func (*CharData) node() {}

// Element is an ordered XML element.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []Node
}

func (*Element) node() {}

// NewElement returns an element named name.
func NewElement(name string) *Element {
	return &Element{Name: name}
}

// Attr returns the value of the attribute called name.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets name to value, replacing in place when the attribute already exists.
func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// RemoveAttr deletes name and reports whether it was present.
func (e *Element) RemoveAttr(name string) bool {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// AppendChild adds n as the last child.
func (e *Element) AppendChild(n Node) {
	e.Children = append(e.Children, n)
}

// AppendElement creates a child element named name and returns it.
func (e *Element) AppendElement(name string) *Element {
	child := NewElement(name)
	e.AppendChild(child)
	return child
}

// AppendText adds a text child.
func (e *Element) AppendText(text string) {
	e.AppendChild(&CharData{Data: text})
}

// ChildElements returns the element children in document order.
func (e *Element) ChildElements() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// FirstChildElement returns the first element child, or nil.
func (e *Element) FirstChildElement() *Element {
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			return el
		}
	}
	return nil
}

// Text concatenates the direct text children.
func (e *Element) Text() string {
	var b strings.Builder
	for _, c := range e.Children {
		if cd, ok := c.(*CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{Name: e.Name, Attrs: append([]Attr(nil), e.Attrs...)}
	for _, c := range e.Children {
		switch n := c.(type) {
		case *Element:
			out.Children = append(out.Children, n.Clone())
		case *CharData:
			cp := *n
			out.Children = append(out.Children, &cp)
		}
	}
	return out
}

// Document is a tree with a single root element. A Document with a nil Root is empty.
type Document struct {
	Root *Element
}

// NewDocument returns a document rooted at root.
func NewDocument(root *Element) *Document {
	return &Document{Root: root}
}

// IsEmpty reports whether the document has no root.
func (d *Document) IsEmpty() bool {
	return d == nil || d.Root == nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{Root: d.Root.Clone()}
}

// Equal compares two elements structurally. Whitespace-only text is ignored.
func Equal(a, b *Element) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i] != b.Attrs[i] {
			return false
		}
	}
	ac, bc := significant(a.Children), significant(b.Children)
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		switch an := ac[i].(type) {
		case *Element:
			bn, ok := bc[i].(*Element)
			if !ok || !Equal(an, bn) {
				return false
			}
		case *CharData:
			bn, ok := bc[i].(*CharData)
			if !ok || an.Data != bn.Data {
				return false
			}
		}
	}
	return true
}

func significant(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if cd, ok := n.(*CharData); ok && strings.TrimSpace(cd.Data) == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}
