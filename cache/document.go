package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-modelxml/xmltree"
)

// DocumentCache stores at most one serialized document per (entity id, format version).
// An entry is valid only while its freshness token equals the caller's.
type DocumentCache interface {
	// Get returns the stored document, or an empty document when there is none.
	Get(ctx context.Context, entityID int64, version int) (*xmltree.Document, error)
	// Lookup returns the entry for the key and whether one exists.
	Lookup(ctx context.Context, entityID int64, version int) (Entry, bool, error)
	HasValidEntry(ctx context.Context, entityID int64, version int, token time.Time) (bool, error)
	// Put stores doc unless an entry with the same token exists. Check and write are one
	// atomic step.
	Put(ctx context.Context, entityID int64, version int, token time.Time, doc *xmltree.Document) error
	// Remove deletes the entry and reports whether there was one.
	Remove(ctx context.Context, entityID int64, version int) (bool, error)
	// Invalidate removes the entries of every version of an entity.
	Invalidate(ctx context.Context, entityID int64) error
	// Entries lists the stored entries of one version.
	Entries(ctx context.Context, version int) ([]EntryInfo, error)
}

// EntryInfo identifies a stored entry without its payload.
type EntryInfo struct {
	EntityID int64
	Version  int
	Token    time.Time
}

// Entry is a stored document with its key and freshness token.
type Entry struct {
	EntryInfo
	Document *xmltree.Document
}

// NormalizeToken makes tokens comparable across stores: UTC, microsecond precision.
func NormalizeToken(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func emptyDocument() *xmltree.Document {
	return &xmltree.Document{}
}
