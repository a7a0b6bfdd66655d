package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-modelxml/xmltree"
)

// hotEntry is what the hot tier stores; misses are cached as Found == false.
type hotEntry struct {
	Entry Entry
	Found bool
}

// Tiered serves lookups from a CacheService hot tier in front of a backing
// DocumentCache. Writes go to the backing cache first and then drop the hot keys.
type Tiered struct {
	backing       DocumentCache
	hot           CacheService
	keySerializer KeySerializer
}

var _ DocumentCache = (*Tiered)(nil)

// NewTiered wraps backing with hot. A nil keySerializer uses the default one.
func NewTiered(backing DocumentCache, hot CacheService, keySerializer KeySerializer) *Tiered {
	if keySerializer == nil {
		keySerializer = NewDefaultKeySerializer()
	}
	return &Tiered{backing: backing, hot: hot, keySerializer: keySerializer}
}

// Get implements DocumentCache.
func (t *Tiered) Get(ctx context.Context, entityID int64, version int) (*xmltree.Document, error) {
	e, ok, err := t.Lookup(ctx, entityID, version)
	if err != nil || !ok {
		return emptyDocument(), err
	}
	return e.Document, nil
}

// Lookup implements DocumentCache.
func (t *Tiered) Lookup(ctx context.Context, entityID int64, version int) (Entry, bool, error) {
	key := EntryKey(t.keySerializer, entityID, version)
	hit, err := GetOrFetch(ctx, t.hot, key, func(ctx context.Context) (hotEntry, error) {
		e, ok, err := t.backing.Lookup(ctx, entityID, version)
		if err != nil {
			return hotEntry{}, err
		}
		return hotEntry{Entry: e, Found: ok}, nil
	})
	if err != nil || !hit.Found {
		return Entry{}, false, err
	}
	e := hit.Entry
	e.Document = e.Document.Clone()
	return e, true, nil
}

// HasValidEntry implements DocumentCache.
func (t *Tiered) HasValidEntry(ctx context.Context, entityID int64, version int, token time.Time) (bool, error) {
	e, ok, err := t.Lookup(ctx, entityID, version)
	if err != nil || !ok {
		return false, err
	}
	return e.Token.Equal(NormalizeToken(token)), nil
}

// Put implements DocumentCache.
func (t *Tiered) Put(ctx context.Context, entityID int64, version int, token time.Time, doc *xmltree.Document) error {
	if err := t.backing.Put(ctx, entityID, version, token, doc); err != nil {
		return err
	}
	return t.hot.Delete(ctx, EntryKey(t.keySerializer, entityID, version))
}

// Remove implements DocumentCache.
func (t *Tiered) Remove(ctx context.Context, entityID int64, version int) (bool, error) {
	removed, err := t.backing.Remove(ctx, entityID, version)
	if err != nil {
		return false, err
	}
	return removed, t.hot.Delete(ctx, EntryKey(t.keySerializer, entityID, version))
}

// Invalidate implements DocumentCache.
func (t *Tiered) Invalidate(ctx context.Context, entityID int64) error {
	if err := t.backing.Invalidate(ctx, entityID); err != nil {
		return err
	}
	return t.hot.DeleteByPrefix(ctx, EntityPrefix(t.keySerializer, entityID))
}

// Entries always reads the backing cache.
func (t *Tiered) Entries(ctx context.Context, version int) ([]EntryInfo, error) {
	return t.backing.Entries(ctx, version)
}
