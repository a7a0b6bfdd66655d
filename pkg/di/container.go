package di

import (
	"context"
	"errors"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-modelxml/cache"
	"github.com/goliatone/go-modelxml/consistency"
	"github.com/goliatone/go-modelxml/engine"
	"github.com/goliatone/go-modelxml/httpapi"
	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/pkg/config"
	"github.com/goliatone/go-modelxml/repositorycache"
	"github.com/goliatone/go-modelxml/strategy"
)

// Container wires the document cache, the engine and their consumers from a
// config.Config. It owns the cache database, if any; call Close when done.
type Container struct {
	config   config.Config
	docs     cache.DocumentCache
	db       *bun.DB
	engine   *engine.Engine
	loader   strategy.Loader
	logger   zerolog.Logger
	closers  []func() error
	registry *model.Registry
}

type Option func(*Container)

// WithLogger sets the logger handed to the engine, checker and server.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithLoader resolves references by fetching models from the application's store.
// It also backs the HTTP API.
func WithLoader(loader strategy.Loader) Option {
	return func(c *Container) { c.loader = loader }
}

// NewContainer builds every component cfg describes. The registry lists the model
// types documents may contain.
func NewContainer(ctx context.Context, cfg config.Config, registry *model.Registry, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{
		config:   cfg,
		registry: registry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.openCache(ctx); err != nil {
		return nil, err
	}

	sopts := append(cfg.Strategy.Options(), strategy.WithRegistry(registry))
	if c.loader != nil {
		sopts = append(sopts, strategy.WithResolver(strategy.NewLoaderResolver(cfg.Strategy.BaseURI, c.loader)))
	}

	eopts := []engine.Option{engine.WithLogger(c.logger)}
	if cfg.SchemaPath != "" {
		schema, err := engine.LoadSchema(cfg.SchemaPath)
		if err != nil {
			c.Close()
			return nil, err
		}
		eopts = append(eopts, engine.WithValidator(schema))
	}

	eng, err := engine.New(strategy.NewContext(sopts...), c.docs, eopts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.engine = eng
	return c, nil
}

// NewContainerWithDefaults builds an in-memory container.
func NewContainerWithDefaults(registry *model.Registry, opts ...Option) (*Container, error) {
	return NewContainer(context.Background(), config.Default(), registry, opts...)
}

func (c *Container) openCache(ctx context.Context) error {
	switch c.config.Cache.Mode {
	case config.CacheMemory:
		c.docs = cache.NewMemory()
		return nil
	}

	p, err := cache.OpenPersistent(ctx, c.config.Database.Driver, c.config.Database.DSN)
	if err != nil {
		return err
	}
	c.db = p.DB()
	c.closers = append(c.closers, p.Close)
	c.docs = p

	if c.config.Cache.Mode == config.CacheTiered {
		hot, err := cache.NewCacheService(c.config.Cache.Hot())
		if err != nil {
			c.Close()
			return err
		}
		c.docs = cache.NewTiered(p, hot, cache.NewDefaultKeySerializer())
	}
	return nil
}

// Engine returns the shared engine.
func (c *Container) Engine() *engine.Engine { return c.engine }

// Documents returns the document cache selected by the cache mode.
func (c *Container) Documents() cache.DocumentCache { return c.docs }

// Registry returns the model registry the container was built with.
func (c *Container) Registry() *model.Registry { return c.registry }

// DB returns the cache database, nil in memory mode.
func (c *Container) DB() *bun.DB { return c.db }

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config { return c.config }

// NewChecker builds a consistency checker over source using the configured rule.
func (c *Container) NewChecker(source consistency.Source) (*consistency.Checker, error) {
	opts := []consistency.Option{consistency.WithLogger(c.logger)}
	if c.config.Consistency.Rule != "" {
		opts = append(opts, consistency.WithRule(c.config.Consistency.Rule))
	}
	return consistency.New(source, c.docs, c.engine, opts...)
}

// NewServer builds the HTTP API. It needs a loader.
func (c *Container) NewServer(opts ...httpapi.Option) (*httpapi.Server, error) {
	if c.loader == nil {
		return nil, errors.New("di: http server requires a loader")
	}
	base := []httpapi.Option{
		httpapi.WithLogger(c.logger),
		httpapi.WithDefaultKind(c.config.HTTP.DefaultKind()),
	}
	if c.config.HTTP.BodyLimit != "" {
		base = append(base, httpapi.WithBodyLimit(c.config.HTTP.BodyLimit))
	}
	return httpapi.New(c.engine, c.loader, append(base, opts...)...), nil
}

// Close releases the cache database.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// NewInvalidatingRepository wraps base so that writes drop the cached documents of
// the records they touch.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewInvalidatingRepository[*Article](container, baseArticles, articleID)
func NewInvalidatingRepository[T any](container *Container, base repository.Repository[T], entityID repositorycache.IDFunc[T]) *repositorycache.InvalidatingRepository[T] {
	return repositorycache.New(base, container.engine, entityID, repositorycache.WithLogger[T](container.logger))
}
