package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-modelxml/xmltree"
)

type entryKey struct {
	entityID int64
	version  int
}

// Memory is an in-process DocumentCache.
type Memory struct {
	entries *xsync.MapOf[entryKey, Entry]
}

var _ DocumentCache = (*Memory)(nil)

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: xsync.NewMapOf[entryKey, Entry]()}
}

// Get implements DocumentCache.
func (m *Memory) Get(ctx context.Context, entityID int64, version int) (*xmltree.Document, error) {
	e, ok, err := m.Lookup(ctx, entityID, version)
	if err != nil || !ok {
		return emptyDocument(), err
	}
	return e.Document, nil
}

// Lookup implements DocumentCache.
func (m *Memory) Lookup(_ context.Context, entityID int64, version int) (Entry, bool, error) {
	e, ok := m.entries.Load(entryKey{entityID, version})
	if !ok {
		return Entry{}, false, nil
	}
	e.Document = e.Document.Clone()
	return e, true, nil
}

// HasValidEntry implements DocumentCache.
func (m *Memory) HasValidEntry(_ context.Context, entityID int64, version int, token time.Time) (bool, error) {
	e, ok := m.entries.Load(entryKey{entityID, version})
	return ok && e.Token.Equal(NormalizeToken(token)), nil
}

// Put implements DocumentCache.
func (m *Memory) Put(_ context.Context, entityID int64, version int, token time.Time, doc *xmltree.Document) error {
	token = NormalizeToken(token)
	if doc == nil {
		doc = emptyDocument()
	}
	m.entries.Compute(entryKey{entityID, version}, func(old Entry, loaded bool) (Entry, bool) {
		if loaded && old.Token.Equal(token) {
			return old, false
		}
		return Entry{
			EntryInfo: EntryInfo{EntityID: entityID, Version: version, Token: token},
			Document:  doc.Clone(),
		}, false
	})
	return nil
}

// Remove implements DocumentCache.
func (m *Memory) Remove(_ context.Context, entityID int64, version int) (bool, error) {
	_, ok := m.entries.LoadAndDelete(entryKey{entityID, version})
	return ok, nil
}

// Invalidate implements DocumentCache.
func (m *Memory) Invalidate(_ context.Context, entityID int64) error {
	m.entries.Range(func(k entryKey, _ Entry) bool {
		if k.entityID == entityID {
			m.entries.Delete(k)
		}
		return true
	})
	return nil
}

// Entries implements DocumentCache.
func (m *Memory) Entries(_ context.Context, version int) ([]EntryInfo, error) {
	var out []EntryInfo
	m.entries.Range(func(k entryKey, e Entry) bool {
		if k.version == version {
			out = append(out, e.EntryInfo)
		}
		return true
	})
	return out, nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	return m.entries.Size()
}
