package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-modelxml/model"
)

// Resolver returns the model a reference token points to.
type Resolver interface {
	Resolve(ctx context.Context, token string) (model.Model, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, token string) (model.Model, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, token string) (model.Model, error) {
	return f(ctx, token)
}

// MapResolver resolves tokens from an in-memory table.
type MapResolver struct {
	mu     sync.RWMutex
	models map[string]model.Model
}

// NewMapResolver returns an empty resolver.
func NewMapResolver() *MapResolver {
	return &MapResolver{models: make(map[string]model.Model)}
}

// Add registers m under token.
func (r *MapResolver) Add(token string, m model.Model) *MapResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[token] = m
	return r
}

// Register adds m under the token ctx would write for it.
func (r *MapResolver) Register(ctx *Context, m model.Model) bool {
	token, ok := ctx.Reference(m)
	if !ok {
		return false
	}
	if l, isLink := model.AsLink(m); isLink {
		m = l.Linked()
	}
	r.Add(token, m)
	return true
}

// Resolve returns the model registered for token, or nil when none is.
func (r *MapResolver) Resolve(_ context.Context, token string) (model.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[token]
	if !ok {
		return nil, fmt.Errorf("no model for %s", token)
	}
	return m, nil
}

// Loader fetches a persisted model by resource name and id.
type Loader interface {
	Load(ctx context.Context, resource string, id model.ID) (model.Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, resource string, id model.ID) (model.Model, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, resource string, id model.ID) (model.Model, error) {
	return f(ctx, resource, id)
}

// LoaderResolver parses tokens of the form <base>/<resource>/<id> and asks a Loader
// for the model. Composite ids are comma separated.
type LoaderResolver struct {
	base   string
	loader Loader
}

// NewLoaderResolver resolves hrefs of the form <baseURI>/<resource>/<id> through loader.
func NewLoaderResolver(baseURI string, loader Loader) *LoaderResolver {
	return &LoaderResolver{base: strings.TrimRight(baseURI, "/"), loader: loader}
}

// Resolve splits token into resource and id and loads the model.
func (r *LoaderResolver) Resolve(ctx context.Context, token string) (model.Model, error) {
	resource, id, err := r.Parse(token)
	if err != nil {
		return nil, err
	}
	return r.loader.Load(ctx, resource, id)
}

// Parse splits token into resource name and id.
func (r *LoaderResolver) Parse(token string) (string, model.ID, error) {
	rest, ok := strings.CutPrefix(token, r.base+"/")
	if !ok {
		return "", nil, fmt.Errorf("token %q is outside %s", token, r.base)
	}
	resource, raw, ok := strings.Cut(rest, "/")
	if !ok || resource == "" || raw == "" || strings.Contains(raw, "/") {
		return "", nil, fmt.Errorf("token %q is not <resource>/<id>", token)
	}
	return resource, model.ID(strings.Split(raw, ",")), nil
}
