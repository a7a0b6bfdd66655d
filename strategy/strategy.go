// Package strategy converts models to XML trees and back.
//
// Both wire formats share one recursive walk; they differ only in their LeafCodec,
// which the walk receives as a parameter. A Strategy is safe for concurrent use: every
// call builds its own walk state and the Context it carries is immutable.
//
// A model-valued field that points back to one of its ancestors is written as a
// reference when the ancestor is reference-eligible. Otherwise the walk would not
// terminate, so it stops with ErrCyclicModel.
package strategy

import (
	"context"
	"fmt"
	"reflect"

	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/xmltree"
)

// Strategy serializes and deserializes models in one wire format.
type Strategy struct {
	kind  Kind
	codec LeafCodec
	ctx   *Context
}

// New returns a strategy for kind. A nil context is replaced with NewContext().
func New(kind Kind, ctx *Context) (*Strategy, error) {
	codec, ok := kind.Codec()
	if !ok {
		return nil, fmt.Errorf("strategy: %s: %w", kind, ErrNotImplemented)
	}
	if ctx == nil {
		ctx = NewContext()
	}
	return &Strategy{kind: kind, codec: codec, ctx: ctx}, nil
}

// Kind returns the wire format this strategy reads and writes.
func (s *Strategy) Kind() Kind { return s.kind }

// Context returns the settings shared by every call on s. Callers must not mutate it;
// use WithContext to derive a strategy with different settings.
func (s *Strategy) Context() *Context { return s.ctx }

// WithContext returns a copy of s using ctx.
func (s *Strategy) WithContext(ctx *Context) *Strategy {
	out := *s
	out.ctx = ctx
	return &out
}

// Serialize writes m under a version-tagged root element.
func (s *Strategy) Serialize(m model.Model) (*xmltree.Document, error) {
	if m == nil {
		return nil, noModel("serialize")
	}
	root := xmltree.NewElement(s.ctx.RootName()).
		SetAttr("version", s.kind.Version()).
		SetAttr("xmlns:xlink", xmltree.XLinkNamespace)

	w := &writer{ctx: s.ctx, codec: s.codec, path: make(map[identity]struct{})}
	if err := w.mapModel(m, root); err != nil {
		return nil, err
	}
	return xmltree.NewDocument(root), nil
}

type writer struct {
	ctx   *Context
	codec LeafCodec
	path  map[identity]struct{}
}

func (w *writer) mapModel(m model.Model, parent *xmltree.Element) error {
	node := parent.AppendElement(m.TypeName())
	if key, ok := identityOf(m); ok {
		w.path[key] = struct{}{}
		defer delete(w.path, key)
	}
	return w.mapAttributes(m, node, m.Describe())
}

func (w *writer) mapAttributes(m model.Model, node *xmltree.Element, names []string) error {
	for _, name := range w.ctx.filterFields(names) {
		f, ok := m.Field(name)
		if !ok {
			return fmt.Errorf("%s.%s: %w", m.TypeName(), name, model.ErrNoSuchField)
		}
		if err := w.mapField(m, f, node); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) mapField(owner model.Model, f *model.Field, node *xmltree.Element) error {
	if w.ctx.ExcludeEmpty() && f.IsEmpty() {
		return nil
	}
	if !f.IsModelValued() {
		w.codec.EncodeScalar(node, f)
		return nil
	}

	values := f.Models()
	if !f.Multiple() && len(values) == 0 {
		// an unset single value still gets its empty node
		values = []model.Model{nil}
	}
	for _, value := range values {
		child := node.AppendElement(f.Name())
		w.codec.MarkOccurrence(child, value)
		if value == nil {
			continue
		}

		if href, ok := w.ctx.Reference(value); ok {
			child.SetAttr("xlink:type", "simple")
			child.SetAttr("xlink:href", href)
			l, isLink := model.AsLink(value)
			if !isLink {
				continue
			}
			if err := w.descend(owner, f, l, child, l.DescribeUntunneled()); err != nil {
				return err
			}
			continue
		}

		if err := w.descend(owner, f, value, child, value.Describe()); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) descend(owner model.Model, f *model.Field, value model.Model, node *xmltree.Element, names []string) error {
	if key, ok := identityOf(value); ok {
		if _, seen := w.path[key]; seen {
			return cyclic(value.TypeName(), owner.TypeName()+"."+f.Name())
		}
		w.path[key] = struct{}{}
		defer delete(w.path, key)
	}
	return w.mapAttributes(value, node, names)
}

type identity struct {
	typ reflect.Type
	ptr uintptr
}

// identityOf keys pointer-backed models by address. Value-typed models have no
// identity and are not tracked.
func identityOf(m model.Model) (identity, bool) {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return identity{}, false
	}
	return identity{typ: v.Type(), ptr: v.Pointer()}, true
}

// Deserialize builds a model from the single entity under the root element.
func (s *Strategy) Deserialize(ctx context.Context, doc *xmltree.Document) (model.Model, error) {
	node, err := s.entityNode(doc)
	if err != nil {
		return nil, err
	}
	r := s.reader(ctx)

	var m model.Model
	if href, ok := referenceOf(node); ok {
		m, err = r.resolve(href)
	} else {
		m, err = r.construct(node.Name)
	}
	if err != nil {
		return nil, err
	}
	if err := r.populate(m, node, false); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateFromTree applies the tree onto an existing model. When the entity node
// carries a reference, the resolver supplies the model instead of bound.
func (s *Strategy) UpdateFromTree(ctx context.Context, doc *xmltree.Document, bound model.Model) (model.Model, error) {
	if !s.codec.Updatable() {
		return nil, notImplemented("update from tree", s.kind)
	}
	node, err := s.entityNode(doc)
	if err != nil {
		return nil, err
	}
	r := s.reader(ctx)

	target := bound
	if href, ok := referenceOf(node); ok {
		if target, err = r.resolve(href); err != nil {
			return nil, err
		}
	} else if target == nil {
		return nil, noModel("update from tree")
	} else if target.TypeName() != node.Name {
		return nil, modelResolution(fmt.Errorf("bound model is %s", target.TypeName()), node.Name)
	}

	if err := r.update(target, node); err != nil {
		return nil, err
	}
	return target, nil
}

func (s *Strategy) entityNode(doc *xmltree.Document) (*xmltree.Element, error) {
	if doc.IsEmpty() {
		return nil, malformed(nil, "empty document")
	}
	root := doc.Root
	if root.Name != s.ctx.RootName() {
		return nil, malformed(nil, "unexpected root element "+root.Name)
	}
	if v, _ := root.Attr("version"); v != s.kind.Version() {
		return nil, malformed(nil, fmt.Sprintf("version %q does not match %s", v, s.kind))
	}
	node := root.FirstChildElement()
	if node == nil {
		return nil, malformed(nil, "document has no entity")
	}
	return node, nil
}

func referenceOf(el *xmltree.Element) (string, bool) {
	href, ok := el.Attr("xlink:href")
	return href, ok && href != ""
}
