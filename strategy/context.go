package strategy

import (
	"sort"
	"strings"

	"github.com/goliatone/go-modelxml/model"
)

// DefaultRootName is the tag of the version wrapper element.
const DefaultRootName = "Models"

// Context holds the settings shared by every recursive call of one walk. It is
// immutable once NewContext returns; getters return copies.
type Context struct {
	excluded      map[string]struct{}
	excludeEmpty  bool
	baseURI       string
	resourceNames map[string]string
	resolver      Resolver
	registry      *model.Registry
	rootName      string
}

// Option configures a Context while it is being built.
type Option func(*Context)

// NewContext builds a frozen context.
func NewContext(opts ...Option) *Context {
	c := &Context{
		excluded:      map[string]struct{}{},
		resourceNames: map[string]string{},
		rootName:      DefaultRootName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// With returns a new context with opts applied on top of c. c is left untouched.
func (c *Context) With(opts ...Option) *Context {
	next := &Context{
		excluded:      make(map[string]struct{}, len(c.excluded)),
		excludeEmpty:  c.excludeEmpty,
		baseURI:       c.baseURI,
		resourceNames: make(map[string]string, len(c.resourceNames)),
		resolver:      c.resolver,
		registry:      c.registry,
		rootName:      c.rootName,
	}
	for k := range c.excluded {
		next.excluded[k] = struct{}{}
	}
	for k, v := range c.resourceNames {
		next.resourceNames[k] = v
	}
	for _, opt := range opts {
		if opt != nil {
			opt(next)
		}
	}
	return next
}

// WithExcludeFields suppresses the named fields on every model of the walk.
func WithExcludeFields(names ...string) Option {
	return func(c *Context) {
		for _, n := range names {
			c.excluded[n] = struct{}{}
		}
	}
}

// WithExcludeEmpty suppresses fields whose value is nil, blank or an empty list.
func WithExcludeEmpty(on bool) Option {
	return func(c *Context) { c.excludeEmpty = on }
}

// WithBaseURI sets the prefix of reference tokens. A trailing slash is dropped.
func WithBaseURI(uri string) Option {
	return func(c *Context) { c.baseURI = strings.TrimRight(uri, "/") }
}

// WithResourceNames maps model type names to the resource segment of reference tokens.
func WithResourceNames(names map[string]string) Option {
	return func(c *Context) {
		for k, v := range names {
			c.resourceNames[k] = v
		}
	}
}

// WithResolver sets the resolver used to turn xlink:href values into models while
// reading. Without one, any reference in the input fails with ErrReferenceResolution.
func WithResolver(r Resolver) Option {
	return func(c *Context) { c.resolver = r }
}

// WithRegistry sets the registry that constructs models by element name while reading.
func WithRegistry(r *model.Registry) Option {
	return func(c *Context) { c.registry = r }
}

// WithRootName overrides the version wrapper tag.
func WithRootName(name string) Option {
	return func(c *Context) {
		if name != "" {
			c.rootName = name
		}
	}
}

// ExcludedFields returns the suppressed field names, sorted.
func (c *Context) ExcludedFields() []string {
	out := make([]string, 0, len(c.excluded))
	for k := range c.excluded {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsExcluded reports whether name is one of the suppressed fields.
func (c *Context) IsExcluded(name string) bool {
	_, ok := c.excluded[name]
	return ok
}

// ExcludeEmpty reports whether nil, blank and empty-list fields are left out of
// written documents.
func (c *Context) ExcludeEmpty() bool { return c.excludeEmpty }

// BaseURI is the prefix of every written xlink:href.
func (c *Context) BaseURI() string { return c.baseURI }

// Resolver returns the configured resolver, or nil.
func (c *Context) Resolver() Resolver { return c.resolver }

// Registry returns the configured registry, or nil.
func (c *Context) Registry() *model.Registry { return c.registry }

// RootName is the tag of the version wrapper element.
func (c *Context) RootName() string { return c.rootName }

// ResourceName returns the resource segment configured for a model type.
func (c *Context) ResourceName(typeName string) (string, bool) {
	name, ok := c.resourceNames[typeName]
	return name, ok && name != ""
}

// ResourceNames returns a copy of the type to resource mapping.
func (c *Context) ResourceNames() map[string]string {
	out := make(map[string]string, len(c.resourceNames))
	for k, v := range c.resourceNames {
		out[k] = v
	}
	return out
}

// Reference returns the reference token for m when m may be written as a reference:
// it is not dependent, its type has a resource mapping and it carries an id. Links are
// judged by the model they link to.
func (c *Context) Reference(m model.Model) (string, bool) {
	if m == nil || model.IsDependent(m) {
		return "", false
	}
	subject := m
	if l, ok := model.AsLink(m); ok {
		subject = l.Linked()
		if subject == nil || model.IsDependent(subject) {
			return "", false
		}
	}
	resource, ok := c.ResourceName(subject.TypeName())
	if !ok {
		return "", false
	}
	id := subject.ID()
	if !id.Persisted() {
		return "", false
	}
	return c.baseURI + "/" + resource + "/" + id.String(), true
}

// filterFields returns names minus the excluded set, keeping order.
func (c *Context) filterFields(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !c.IsExcluded(n) {
			out = append(out, n)
		}
	}
	return out
}
