package strategy

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/xmltree"
)

type reader struct {
	ctx   context.Context
	sctx  *Context
	codec LeafCodec
}

func (s *Strategy) reader(ctx context.Context) *reader {
	if ctx == nil {
		ctx = context.Background()
	}
	return &reader{ctx: ctx, sctx: s.ctx, codec: s.codec}
}

func (r *reader) construct(typeName string) (model.Model, error) {
	reg := r.sctx.Registry()
	if reg == nil {
		return nil, modelResolution(errors.New("no registry configured"), typeName)
	}
	m, err := reg.New(typeName)
	if err != nil {
		return nil, modelResolution(err, typeName)
	}
	return m, nil
}

func (r *reader) resolve(href string) (model.Model, error) {
	res := r.sctx.Resolver()
	if res == nil {
		return nil, referenceResolution(errors.New("no resolver configured"), href)
	}
	m, err := res.Resolve(r.ctx, href)
	if err != nil {
		return nil, referenceResolution(err, href)
	}
	if m == nil {
		return nil, referenceResolution(nil, href)
	}
	return m, nil
}

// populate applies node onto m. Attribute handling belongs to the codec; child
// elements must name a field of m.
func (r *reader) populate(m model.Model, node *xmltree.Element, own bool) error {
	if err := r.codec.DecodeAttrs(m, node, own); err != nil {
		return err
	}
	for _, el := range node.ChildElements() {
		spec, ok := lookupSpec(m, el.Name, own)
		if !ok {
			return unknownField(m.TypeName(), el.Name)
		}
		if !spec.IsModelValued() {
			if err := r.scalarChild(m, spec, el); err != nil {
				return err
			}
			continue
		}
		sub, err := r.subModel(spec, el)
		if err != nil {
			return err
		}
		if err := assign(m, spec, sub); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) scalarChild(m model.Model, spec model.FieldSpec, el *xmltree.Element) error {
	v, err := spec.DecodeText(el.Text())
	if err != nil {
		return fieldError(err, m.TypeName(), spec.Name)
	}
	if v == nil && spec.Multiple {
		return nil
	}
	return assign(m, spec, v)
}

// subModel builds the value of one model-valued field occurrence.
func (r *reader) subModel(spec model.FieldSpec, el *xmltree.Element) (model.Model, error) {
	if href, ok := referenceOf(el); ok {
		resolved, err := r.resolve(href)
		if err != nil {
			return nil, err
		}
		return r.wrapResolved(spec, resolved, el)
	}
	if isBlank(el) {
		return nil, nil
	}
	sub, err := r.construct(spec.ValueModel)
	if err != nil {
		return nil, err
	}
	if err := r.populate(sub, el, false); err != nil {
		return nil, err
	}
	return sub, nil
}

// wrapResolved puts a resolved model into a fresh link when the field holds links to
// it. Only the link's own fields are read from the node.
func (r *reader) wrapResolved(spec model.FieldSpec, resolved model.Model, el *xmltree.Element) (model.Model, error) {
	if reg := r.sctx.Registry(); reg != nil && resolved.TypeName() != spec.ValueModel {
		if t, ok := reg.Lookup(spec.ValueModel); ok && t.Kind() == model.LinkKind {
			m, err := r.construct(spec.ValueModel)
			if err != nil {
				return nil, err
			}
			l, _ := model.AsLink(m)
			l.SetLinked(resolved)
			if err := r.populate(l, el, true); err != nil {
				return nil, err
			}
			return l, nil
		}
	}
	if l, ok := model.AsLink(resolved); ok {
		if err := r.populate(l, el, true); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// update is the in-place variant of populate. Existing model values are matched to
// element occurrences by position; new ones are built only for surplus occurrences.
func (r *reader) update(m model.Model, node *xmltree.Element) error {
	if err := r.codec.DecodeAttrs(m, node, false); err != nil {
		return err
	}

	var order []string
	groups := make(map[string][]*xmltree.Element)
	for _, el := range node.ChildElements() {
		if _, seen := groups[el.Name]; !seen {
			order = append(order, el.Name)
		}
		groups[el.Name] = append(groups[el.Name], el)
	}

	for _, name := range order {
		spec, ok := lookupSpec(m, name, false)
		if !ok {
			return unknownField(m.TypeName(), name)
		}
		els := groups[name]
		if !spec.IsModelValued() {
			for _, el := range els {
				if err := r.scalarChild(m, spec, el); err != nil {
					return err
				}
			}
			continue
		}

		f, ok := m.Field(name)
		if !ok {
			return unknownField(m.TypeName(), name)
		}
		existing := f.Models()
		rebuilt := make([]model.Model, 0, len(els))
		for i, el := range els {
			var current model.Model
			if i < len(existing) {
				current = existing[i]
			}
			next, err := r.updateOccurrence(spec, current, el)
			if err != nil {
				return err
			}
			rebuilt = append(rebuilt, next)
		}
		if !spec.Multiple {
			rebuilt = rebuilt[len(rebuilt)-1:]
		}
		if err := setField(m, name, rebuilt); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) updateOccurrence(spec model.FieldSpec, current model.Model, el *xmltree.Element) (model.Model, error) {
	if href, ok := referenceOf(el); ok {
		resolved, err := r.resolve(href)
		if err != nil {
			return nil, err
		}
		if l, isLink := model.AsLink(current); isLink && resolved.TypeName() != spec.ValueModel {
			l.SetLinked(resolved)
			if err := r.populate(l, el, true); err != nil {
				return nil, err
			}
			return l, nil
		}
		return r.wrapResolved(spec, resolved, el)
	}
	if current == nil {
		return r.subModel(spec, el)
	}
	if err := r.update(current, el); err != nil {
		return nil, err
	}
	return current, nil
}

func lookupSpec(m model.Model, name string, own bool) (model.FieldSpec, bool) {
	if own {
		return m.Type().Spec(name)
	}
	return model.SpecFor(m, name)
}

func assign(m model.Model, spec model.FieldSpec, value any) error {
	a, ok := model.AccessorFor(m, spec.Name)
	if !ok {
		return unknownField(m.TypeName(), spec.Name)
	}
	var err error
	if spec.Multiple {
		err = a.Add(m, value)
	} else {
		err = a.Set(m, value)
	}
	if err != nil {
		return fieldError(err, m.TypeName(), spec.Name)
	}
	return nil
}

func setField(m model.Model, name string, value any) error {
	a, ok := model.AccessorFor(m, name)
	if !ok {
		return unknownField(m.TypeName(), name)
	}
	if err := a.Set(m, value); err != nil {
		return fieldError(err, m.TypeName(), name)
	}
	return nil
}

// isBlank reports a node written for a nil value.
func isBlank(el *xmltree.Element) bool {
	return len(el.Attrs) == 0 && len(el.ChildElements()) == 0 && strings.TrimSpace(el.Text()) == ""
}
