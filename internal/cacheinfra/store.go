package cacheinfra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	repository "github.com/goliatone/go-repository-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// CacheRecord is one persisted document. The pair (EntityID, FormatVersion) is unique.
type CacheRecord struct {
	bun.BaseModel `bun:"table:cache_entries,alias:cache_entries"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	EntityID       int64     `bun:"entity_id,notnull,unique:entity_version"`
	FormatVersion  int       `bun:"format_version,notnull,unique:entity_version"`
	FreshnessToken time.Time `bun:"freshness_token,notnull"`
	Payload        string    `bun:"payload,notnull"`
}

// OpenDB opens a bun database for driver ("sqlite3" or "postgres").
func OpenDB(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, err
		}
		// in-memory databases are per connection
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, &ConfigError{Field: "Driver", Message: fmt.Sprintf("unsupported driver %q", driver)}
	}
}

// Store persists documents in the cache_entries table.
type Store struct {
	db      *bun.DB
	records repository.Repository[*CacheRecord]
}

// NewStore builds a store over db. Call Migrate before first use.
func NewStore(db *bun.DB) *Store {
	records := repository.NewRepository[*CacheRecord](db, repository.ModelHandlers[*CacheRecord]{
		NewRecord: func() *CacheRecord { return &CacheRecord{} },
		GetID: func(r *CacheRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *CacheRecord, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
	return &Store{db: db, records: records}
}

// DB returns the underlying database.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the cache table and its unique index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*CacheRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Lookup returns the record for (entityID, version), or nil when there is none.
func (s *Store) Lookup(ctx context.Context, entityID int64, version int) (*CacheRecord, error) {
	records, _, err := s.records.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.entity_id = ?", entityID).
			Where("?TableAlias.format_version = ?", version).
			Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Put inserts or replaces the record in one statement. A row whose token already
// equals token is left untouched.
func (s *Store) Put(ctx context.Context, entityID int64, version int, token time.Time, payload string) error {
	rec := &CacheRecord{
		ID:             uuid.New(),
		EntityID:       entityID,
		FormatVersion:  version,
		FreshnessToken: token,
		Payload:        payload,
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (entity_id, format_version) DO UPDATE").
		Set("freshness_token = EXCLUDED.freshness_token").
		Set("payload = EXCLUDED.payload").
		Where("cache_entries.freshness_token <> EXCLUDED.freshness_token").
		Exec(ctx)
	return err
}

// Remove deletes one record and reports whether it existed.
func (s *Store) Remove(ctx context.Context, entityID int64, version int) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*CacheRecord)(nil)).
		Where("entity_id = ?", entityID).
		Where("format_version = ?", version).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveEntity deletes the records of every version of an entity.
func (s *Store) RemoveEntity(ctx context.Context, entityID int64) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*CacheRecord)(nil)).
		Where("entity_id = ?", entityID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// List returns the records of one version without payloads, ordered by entity id.
func (s *Store) List(ctx context.Context, version int) ([]CacheRecord, error) {
	var records []CacheRecord
	err := s.db.NewSelect().
		Model(&records).
		Column("id", "entity_id", "format_version", "freshness_token").
		Where("format_version = ?", version).
		Order("entity_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
