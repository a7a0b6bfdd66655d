// Package consistency reconciles cached documents with the entities they were
// rendered from.
package consistency

import (
	"context"
	"fmt"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	goerrors "github.com/goliatone/go-errors"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-modelxml/cache"
	"github.com/goliatone/go-modelxml/model"
	"github.com/goliatone/go-modelxml/strategy"
	"github.com/goliatone/go-modelxml/xmltree"
)

// Entity is the source-of-truth view of one persisted entity.
type Entity struct {
	ID       int64
	Modified time.Time
	// Attributes are exposed to the eligibility rule by name.
	Attributes map[string]any
}

// Source lists persisted entities and loads them as models.
type Source interface {
	Entities(ctx context.Context) ([]Entity, error)
	Load(ctx context.Context, id int64) (model.Model, error)
}

// Refresher regenerates and stores the document of a model. *engine.Engine satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, m model.Model, kind strategy.Kind) (*xmltree.Document, error)
}

// Report counts the outcome of one run. Checked counts entities plus cached entries
// that had no entity. Every inconsistency ends up Repaired, Removed or Failed; rule
// evaluation errors are counted as Failed too.
type Report struct {
	Checked      int
	Inconsistent int
	Repaired     int
	Removed      int
	Failed       int
}

// String formats the counters for logs.
func (r Report) String() string {
	return fmt.Sprintf("checked=%d inconsistent=%d repaired=%d removed=%d failed=%d",
		r.Checked, r.Inconsistent, r.Repaired, r.Removed, r.Failed)
}

// Checker compares the entities of a Source with the entries of a DocumentCache.
type Checker struct {
	source    Source
	docs      cache.DocumentCache
	refresher Refresher
	rule      *exprvm.Program
	logger    zerolog.Logger
}

type Option func(*Checker) error

// WithRule sets the eligibility rule, a boolean expr-lang expression over the entity
// attributes plus ID and Modified. Only eligible entities should have a document. An
// empty rule makes every entity eligible.
func WithRule(rule string) Option {
	return func(c *Checker) error {
		if rule == "" {
			c.rule = nil
			return nil
		}
		program, err := exprlang.Compile(rule,
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
			exprlang.AsBool(),
		)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid eligibility rule").
				WithTextCode("INVALID_RULE").
				WithMetadata(map[string]any{"rule": rule})
		}
		c.rule = program
		return nil
	}
}

// WithLogger sets the logger used for per-entity outcomes.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Checker) error {
		c.logger = logger
		return nil
	}
}

// New returns a checker over source and docs. Stale or missing documents are
// regenerated through refresher.
func New(source Source, docs cache.DocumentCache, refresher Refresher, opts ...Option) (*Checker, error) {
	c := &Checker{
		source:    source,
		docs:      docs,
		refresher: refresher,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Check reconciles the documents of one format version. Stale or missing documents
// of eligible entities are regenerated; documents without an eligible entity are
// removed. Per-entity failures are logged and counted; only listing entities or
// entries, or a cancelled context, aborts the run.
func (c *Checker) Check(ctx context.Context, kind strategy.Kind) (Report, error) {
	var report Report
	version := int(kind)

	entities, err := c.source.Entities(ctx)
	if err != nil {
		return report, goerrors.Wrap(err, goerrors.CategoryOperation, "list entities").
			WithTextCode("CHECK_ABORTED")
	}
	entries, err := c.docs.Entries(ctx, version)
	if err != nil {
		return report, goerrors.Wrap(err, goerrors.CategoryOperation, "list cache entries").
			WithTextCode("CHECK_ABORTED")
	}

	tokens := make(map[int64]time.Time, len(entries))
	for _, e := range entries {
		tokens[e.EntityID] = e.Token
	}
	// entities whose cached entry must stay, whether or not it was refreshed
	keep := make(map[int64]struct{}, len(entities))
	known := make(map[int64]struct{}, len(entities))

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		known[entity.ID] = struct{}{}
		log := c.logger.With().Int64("entity_id", entity.ID).Int("version", version).Logger()

		eligible, err := c.eligible(entity)
		if err != nil {
			report.Failed++
			keep[entity.ID] = struct{}{}
			log.Error().Err(err).Msg("eligibility rule failed")
			continue
		}
		if !eligible {
			continue
		}
		keep[entity.ID] = struct{}{}

		token, cached := tokens[entity.ID]
		if cached && token.Equal(cache.NormalizeToken(entity.Modified)) {
			continue
		}
		report.Inconsistent++
		if cached {
			log.Info().Time("cached", token).Time("modified", entity.Modified).Msg("stale document")
		} else {
			log.Info().Msg("missing document")
		}

		if err := c.repair(ctx, entity, kind); err != nil {
			report.Failed++
			log.Error().Err(err).Msg("document regeneration failed")
			continue
		}
		report.Repaired++
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, ok := keep[e.EntityID]; ok {
			continue
		}
		if _, ok := known[e.EntityID]; !ok {
			report.Checked++
		}
		report.Inconsistent++
		log := c.logger.With().Int64("entity_id", e.EntityID).Int("version", version).Logger()

		if _, err := c.docs.Remove(ctx, e.EntityID, version); err != nil {
			report.Failed++
			log.Error().Err(err).Msg("orphaned document removal failed")
			continue
		}
		report.Removed++
		log.Info().Msg("orphaned document removed")
	}

	c.logger.Info().Int("version", version).Str("report", report.String()).Msg("consistency check finished")
	return report, nil
}

func (c *Checker) eligible(entity Entity) (bool, error) {
	if c.rule == nil {
		return true, nil
	}
	env := make(map[string]any, len(entity.Attributes)+2)
	for k, v := range entity.Attributes {
		env[k] = v
	}
	env["ID"] = entity.ID
	env["Modified"] = entity.Modified

	out, err := exprlang.Run(c.rule, env)
	if err != nil {
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("eligibility rule returned %T", out)
	}
	return ok, nil
}

func (c *Checker) repair(ctx context.Context, entity Entity, kind strategy.Kind) error {
	m, err := c.source.Load(ctx, entity.ID)
	if err != nil {
		return err
	}
	_, err = c.refresher.Refresh(ctx, m, kind)
	return err
}
