package repositorycache

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// Interface assertion to ensure InvalidatingRepository implements Repository[T]
var _ repository.Repository[any] = (*InvalidatingRepository[any])(nil)

// Invalidator drops the cached documents of an entity. *engine.Engine satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, entityID int64) error
}

// IDFunc returns the cache entity id of a record, or false when it has none.
type IDFunc[T any] func(record T) (int64, bool)

// InvalidatingRepository decorates a base repository so that successful writes drop
// the cached documents of the records they touched.
type InvalidatingRepository[T any] struct {
	base        repository.Repository[T]
	invalidator Invalidator
	entityID    IDFunc[T]
	logger      zerolog.Logger
}

// Option configures an InvalidatingRepository.
type Option[T any] func(*InvalidatingRepository[T])

// WithLogger sets the logger for invalidation failures and untracked writes.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(r *InvalidatingRepository[T]) { r.logger = logger }
}

// New wraps base. entityID maps records to the ids their documents are cached under.
func New[T any](base repository.Repository[T], invalidator Invalidator, entityID IDFunc[T], opts ...Option[T]) *InvalidatingRepository[T] {
	r := &InvalidatingRepository[T]{
		base:        base,
		invalidator: invalidator,
		entityID:    entityID,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get retrieves a single record using the provided criteria
func (c *InvalidatingRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.Get(ctx, criteria...)
}

// GetByID retrieves a record by ID with optional criteria
func (c *InvalidatingRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByID(ctx, id, criteria...)
}

// List retrieves multiple records using the provided criteria
func (c *InvalidatingRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.List(ctx, criteria...)
}

// Count returns the number of records matching the criteria
func (c *InvalidatingRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.Count(ctx, criteria...)
}

// GetByIdentifier retrieves a record by identifier with optional criteria
func (c *InvalidatingRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifier(ctx, identifier, criteria...)
}

// Create creates a new record. A new record has no cached documents yet.
func (c *InvalidatingRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return c.base.Create(ctx, record, criteria...)
}

// CreateTx creates a new record within a transaction
func (c *InvalidatingRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return c.base.CreateTx(ctx, tx, record, criteria...)
}

// CreateMany creates multiple records
func (c *InvalidatingRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return c.base.CreateMany(ctx, records, criteria...)
}

// CreateManyTx creates multiple records within a transaction
func (c *InvalidatingRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return c.base.CreateManyTx(ctx, tx, records, criteria...)
}

// GetOrCreate gets a record or creates it if it doesn't exist
func (c *InvalidatingRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	return c.base.GetOrCreate(ctx, record)
}

// GetOrCreateTx gets a record or creates it if it doesn't exist within a transaction
func (c *InvalidatingRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return c.base.GetOrCreateTx(ctx, tx, record)
}

// Update updates a record
func (c *InvalidatingRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.invalidate(ctx, "Update", result)
	}
	return result, err
}

// UpdateTx updates a record within a transaction
func (c *InvalidatingRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.invalidate(ctx, "UpdateTx", result)
	}
	return result, err
}

// UpdateMany updates multiple records
func (c *InvalidatingRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		c.invalidate(ctx, "UpdateMany", result...)
	}
	return result, err
}

// UpdateManyTx updates multiple records within a transaction
func (c *InvalidatingRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.invalidate(ctx, "UpdateManyTx", result...)
	}
	return result, err
}

// Upsert inserts or updates a record
func (c *InvalidatingRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.invalidate(ctx, "Upsert", result)
	}
	return result, err
}

// UpsertTx inserts or updates a record within a transaction
func (c *InvalidatingRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		c.invalidate(ctx, "UpsertTx", result)
	}
	return result, err
}

// UpsertMany inserts or updates multiple records
func (c *InvalidatingRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		c.invalidate(ctx, "UpsertMany", result...)
	}
	return result, err
}

// UpsertManyTx inserts or updates multiple records within a transaction
func (c *InvalidatingRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.invalidate(ctx, "UpsertManyTx", result...)
	}
	return result, err
}

// Delete deletes a record
func (c *InvalidatingRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.invalidate(ctx, "Delete", record)
	}
	return err
}

// DeleteTx deletes a record within a transaction
func (c *InvalidatingRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.DeleteTx(ctx, tx, record)
	if err == nil {
		c.invalidate(ctx, "DeleteTx", record)
	}
	return err
}

// DeleteMany deletes multiple records based on criteria
func (c *InvalidatingRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteMany(ctx, criteria...)
	if err == nil {
		c.untracked("DeleteMany")
	}
	return err
}

// DeleteManyTx deletes multiple records based on criteria within a transaction
func (c *InvalidatingRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		c.untracked("DeleteManyTx")
	}
	return err
}

// DeleteWhere deletes records based on criteria
func (c *InvalidatingRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhere(ctx, criteria...)
	if err == nil {
		c.untracked("DeleteWhere")
	}
	return err
}

// DeleteWhereTx deletes records based on criteria within a transaction
func (c *InvalidatingRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		c.untracked("DeleteWhereTx")
	}
	return err
}

// ForceDelete force deletes a record (bypassing soft delete)
func (c *InvalidatingRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.invalidate(ctx, "ForceDelete", record)
	}
	return err
}

// ForceDeleteTx force deletes a record within a transaction (bypassing soft delete)
func (c *InvalidatingRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		c.invalidate(ctx, "ForceDeleteTx", record)
	}
	return err
}

// GetTx retrieves a record within a transaction
func (c *InvalidatingRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

// GetByIDTx retrieves a record by ID within a transaction
func (c *InvalidatingRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

// ListTx retrieves records within a transaction
func (c *InvalidatingRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

// CountTx counts records within a transaction
func (c *InvalidatingRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

// GetByIdentifierTx retrieves a record by identifier within a transaction
func (c *InvalidatingRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw executes a raw SQL query. Raw writes are not tracked.
func (c *InvalidatingRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

// RawTx executes a raw SQL query within a transaction. Raw writes are not tracked.
func (c *InvalidatingRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository
func (c *InvalidatingRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// invalidate drops the documents of every record with an entity id. Failures are
// logged; the write itself already succeeded.
func (c *InvalidatingRepository[T]) invalidate(ctx context.Context, op string, records ...T) {
	for _, record := range records {
		id, ok := c.entityID(record)
		if !ok {
			continue
		}
		if err := c.invalidator.Invalidate(ctx, id); err != nil {
			c.logger.Warn().Err(err).Str("op", op).Int64("entity_id", id).Msg("document invalidation failed")
		}
	}
}

// untracked records criteria-only writes whose affected ids are unknown. Their
// documents are left for the consistency checker.
func (c *InvalidatingRepository[T]) untracked(op string) {
	c.logger.Info().Str("op", op).Msg("criteria write left cached documents to the consistency checker")
}
