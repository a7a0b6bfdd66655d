package cache

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-modelxml/internal/cacheinfra"
	"github.com/goliatone/go-modelxml/xmltree"
)

// Persistent is a DocumentCache over the SQL cache_entries table.
type Persistent struct {
	store *cacheinfra.Store
}

var _ DocumentCache = (*Persistent)(nil)

// OpenPersistent opens driver/dsn and creates the cache table when missing.
func OpenPersistent(ctx context.Context, driver, dsn string) (*Persistent, error) {
	db, err := cacheinfra.OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	store := cacheinfra.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Persistent{store: store}, nil
}

// DB returns the underlying database so entity repositories can share it.
func (p *Persistent) DB() *bun.DB {
	return p.store.DB()
}

// Close releases the database.
func (p *Persistent) Close() error {
	return p.store.DB().Close()
}

// Get implements DocumentCache.
func (p *Persistent) Get(ctx context.Context, entityID int64, version int) (*xmltree.Document, error) {
	e, ok, err := p.Lookup(ctx, entityID, version)
	if err != nil || !ok {
		return emptyDocument(), err
	}
	return e.Document, nil
}

// Lookup implements DocumentCache.
func (p *Persistent) Lookup(ctx context.Context, entityID int64, version int) (Entry, bool, error) {
	rec, err := p.store.Lookup(ctx, entityID, version)
	if err != nil || rec == nil {
		return Entry{}, false, err
	}
	doc := emptyDocument()
	if rec.Payload != "" {
		if doc, err = xmltree.ParseString(rec.Payload); err != nil {
			return Entry{}, false, err
		}
	}
	return Entry{
		EntryInfo: EntryInfo{EntityID: rec.EntityID, Version: rec.FormatVersion, Token: NormalizeToken(rec.FreshnessToken)},
		Document:  doc,
	}, true, nil
}

// HasValidEntry implements DocumentCache.
func (p *Persistent) HasValidEntry(ctx context.Context, entityID int64, version int, token time.Time) (bool, error) {
	rec, err := p.store.Lookup(ctx, entityID, version)
	if err != nil || rec == nil {
		return false, err
	}
	return NormalizeToken(rec.FreshnessToken).Equal(NormalizeToken(token)), nil
}

// Put implements DocumentCache.
func (p *Persistent) Put(ctx context.Context, entityID int64, version int, token time.Time, doc *xmltree.Document) error {
	payload := ""
	if !doc.IsEmpty() {
		payload = doc.String()
	}
	return p.store.Put(ctx, entityID, version, NormalizeToken(token), payload)
}

// Remove implements DocumentCache.
func (p *Persistent) Remove(ctx context.Context, entityID int64, version int) (bool, error) {
	return p.store.Remove(ctx, entityID, version)
}

// Invalidate implements DocumentCache.
func (p *Persistent) Invalidate(ctx context.Context, entityID int64) error {
	_, err := p.store.RemoveEntity(ctx, entityID)
	return err
}

// Entries implements DocumentCache.
func (p *Persistent) Entries(ctx context.Context, version int) ([]EntryInfo, error) {
	records, err := p.store.List(ctx, version)
	if err != nil {
		return nil, err
	}
	out := make([]EntryInfo, 0, len(records))
	for _, rec := range records {
		out = append(out, EntryInfo{
			EntityID: rec.EntityID,
			Version:  rec.FormatVersion,
			Token:    NormalizeToken(rec.FreshnessToken),
		})
	}
	return out, nil
}
