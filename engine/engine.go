// Package engine ties the serialization strategies to a document cache.
//
// Documents are served from the cache while the entity's modification time matches the
// cached freshness token, and regenerated otherwise. Cache failures never fail a call:
// they are logged and the document is rebuilt from the model.
package engine

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jacoelho/xsd"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-modelxml/cache"
	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/strategy"
	"github.com/goliatone/go-modelxml/xmltree"
)

var (
	// ErrNotCacheable is returned by Refresh for models without a numeric id or a
	// modification time.
	ErrNotCacheable = errors.New("model cannot be cached")
	// ErrInvalidDocument means a generated document failed schema validation.
	ErrInvalidDocument = errors.New("document does not match schema")
)

// Validator checks an encoded document. *xsd.Schema satisfies it.
type Validator interface {
	Validate(r io.Reader) error
}

// LoadSchema compiles the XSD at path.
func LoadSchema(path string) (*xsd.Schema, error) {
	return xsd.LoadFile(path)
}

// LoadSchemaFS compiles the XSD at location in fsys.
func LoadSchemaFS(fsys fs.FS, location string) (*xsd.Schema, error) {
	return xsd.Load(fsys, location)
}

// Engine renders, reads and updates models through the cache.
type Engine struct {
	strategies map[strategy.Kind]*strategy.Strategy
	docs       cache.DocumentCache
	validator  Validator
	logger     zerolog.Logger
}

type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithValidator validates every generated document before it is cached.
func WithValidator(v Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// New builds an engine with a strategy for every known kind. A nil docs uses an
// in-memory cache.
func New(sctx *strategy.Context, docs cache.DocumentCache, opts ...Option) (*Engine, error) {
	if docs == nil {
		docs = cache.NewMemory()
	}
	e := &Engine{
		strategies: make(map[strategy.Kind]*strategy.Strategy, len(strategy.Kinds)),
		docs:       docs,
		logger:     zerolog.Nop(),
	}
	for _, kind := range strategy.Kinds {
		s, err := strategy.New(kind, sctx)
		if err != nil {
			return nil, err
		}
		e.strategies[kind] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Cache returns the document cache.
func (e *Engine) Cache() cache.DocumentCache { return e.docs }

// Strategy returns the strategy for kind.
func (e *Engine) Strategy(kind strategy.Kind) (*strategy.Strategy, error) {
	s, ok := e.strategies[kind]
	if !ok {
		return nil, goerrors.Wrap(strategy.ErrNotImplemented, goerrors.CategoryBadInput, "unsupported format "+kind.String()).
			WithTextCode(strategy.CodeNotImplemented)
	}
	return s, nil
}

// Document returns the document for m, from the cache when its entry is fresh.
func (e *Engine) Document(ctx context.Context, m model.Model, kind strategy.Kind) (*xmltree.Document, error) {
	s, err := e.Strategy(kind)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return s.Serialize(nil)
	}

	id, token, cacheable := cacheKey(m)
	if !cacheable {
		return e.generate(ctx, s, m)
	}

	log := e.logger.With().Int64("entity_id", id).Int("version", int(kind)).Logger()
	entry, found, err := e.docs.Lookup(ctx, id, int(kind))
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("cache lookup failed")
	case found && entry.Token.Equal(cache.NormalizeToken(token)):
		log.Debug().Msg("cache hit")
		return entry.Document, nil
	}
	return e.store(ctx, s, m, id, token)
}

// Render returns the encoded document for m.
func (e *Engine) Render(ctx context.Context, m model.Model, kind strategy.Kind) (string, error) {
	doc, err := e.Document(ctx, m, kind)
	if err != nil {
		return "", err
	}
	return doc.String(), nil
}

// Refresh regenerates and stores the document for m regardless of the cached entry.
// Unlike Document, a failed cache write is returned to the caller.
func (e *Engine) Refresh(ctx context.Context, m model.Model, kind strategy.Kind) (*xmltree.Document, error) {
	s, err := e.Strategy(kind)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return s.Serialize(nil)
	}
	id, token, cacheable := cacheKey(m)
	if !cacheable {
		return nil, goerrors.Wrap(ErrNotCacheable, goerrors.CategoryBadInput, "refresh "+m.TypeName()).
			WithTextCode("NOT_CACHEABLE").
			WithMetadata(map[string]any{"type": m.TypeName(), "id": m.ID().String()})
	}
	doc, err := e.generate(ctx, s, m)
	if err != nil {
		return nil, err
	}
	if err := e.docs.Put(ctx, id, int(kind), token, doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "store refreshed document").
			WithTextCode("CACHE_STORE_FAILED").
			WithMetadata(map[string]any{"entity_id": id, "version": int(kind)})
	}
	e.logger.Debug().Int64("entity_id", id).Int("version", int(kind)).Msg("document refreshed")
	return doc, nil
}

// Read parses r and builds the model it describes.
func (e *Engine) Read(ctx context.Context, r io.Reader, kind strategy.Kind) (model.Model, error) {
	s, err := e.Strategy(kind)
	if err != nil {
		return nil, err
	}
	doc, err := xmltree.Parse(r)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse document").
			WithTextCode(strategy.CodeMalformedInput)
	}
	return s.Deserialize(ctx, doc)
}

// Update applies the document in r to m and drops the cached documents of the
// updated entity.
func (e *Engine) Update(ctx context.Context, m model.Model, r io.Reader, kind strategy.Kind) (model.Model, error) {
	s, err := e.Strategy(kind)
	if err != nil {
		return nil, err
	}
	doc, err := xmltree.Parse(r)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse document").
			WithTextCode(strategy.CodeMalformedInput)
	}
	updated, err := s.UpdateFromTree(ctx, doc, m)
	if err != nil {
		return nil, err
	}
	if id, ok := EntityID(updated); ok {
		if err := e.Invalidate(ctx, id); err != nil {
			e.logger.Warn().Err(err).Int64("entity_id", id).Msg("cache invalidation failed")
		}
	}
	return updated, nil
}

// Invalidate drops the cached documents of every version of an entity.
func (e *Engine) Invalidate(ctx context.Context, entityID int64) error {
	return e.docs.Invalidate(ctx, entityID)
}

func (e *Engine) generate(_ context.Context, s *strategy.Strategy, m model.Model) (*xmltree.Document, error) {
	doc, err := s.Serialize(m)
	if err != nil {
		return nil, err
	}
	if err := e.validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (e *Engine) store(ctx context.Context, s *strategy.Strategy, m model.Model, id int64, token time.Time) (*xmltree.Document, error) {
	doc, err := e.generate(ctx, s, m)
	if err != nil {
		return nil, err
	}
	if err := e.docs.Put(ctx, id, int(s.Kind()), token, doc); err != nil {
		e.logger.Warn().Err(err).Int64("entity_id", id).Int("version", int(s.Kind())).Msg("cache store failed")
	} else {
		e.logger.Debug().Int64("entity_id", id).Int("version", int(s.Kind())).Msg("document cached")
	}
	return doc, nil
}

func (e *Engine) validate(doc *xmltree.Document) error {
	if e.validator == nil {
		return nil
	}
	if err := e.validator.Validate(strings.NewReader(doc.String())); err != nil {
		return goerrors.Wrap(errors.Join(ErrInvalidDocument, err), goerrors.CategoryInternal, "generated document is invalid").
			WithTextCode("INVALID_DOCUMENT")
	}
	return nil
}

// EntityID returns the cache key of m: its id when it has exactly one integer part.
func EntityID(m model.Model) (int64, bool) {
	if m == nil {
		return 0, false
	}
	id := m.ID()
	if len(id) != 1 {
		return 0, false
	}
	n, err := strconv.ParseInt(id[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func cacheKey(m model.Model) (int64, time.Time, bool) {
	id, ok := EntityID(m)
	if !ok {
		return 0, time.Time{}, false
	}
	ts, ok := m.(model.Timestamped)
	if !ok {
		return 0, time.Time{}, false
	}
	modified := ts.Modified()
	if modified.IsZero() {
		return 0, time.Time{}, false
	}
	return id, modified, true
}
