// Package cache stores serialized model documents keyed by entity id and format version.
//
// # Overview
//
// The package exports the DocumentCache interface and three implementations:
//
//   - Memory: an in-process map with atomic per-key upserts
//   - Persistent: the cache_entries SQL table (SQLite or Postgres through bun)
//   - Tiered: a sturdyc hot tier in front of another DocumentCache
//
// Each entry carries a freshness token, normally the modification time of the entity
// it was rendered from. An entry is valid only while the caller's token equals the
// stored one:
//
//	ok, err := docs.HasValidEntry(ctx, id, 1, entity.Modified())
//	if err == nil && ok {
//		doc, err := docs.Get(ctx, id, 1)
//		...
//	}
//
// Tokens are normalized to UTC with microsecond precision before they are compared or
// stored, so values that round trip through a database still match.
//
// # Put semantics
//
// Put is a single conditional upsert. When an entry with the same token already exists
// it is left untouched; otherwise the entry is inserted or replaced. Concurrent writers
// therefore never produce two entries for one (entity, version) pair.
//
// # Hot tier
//
// Tiered reads through a CacheService. Misses are cached too, and every write drops the
// affected hot keys after the backing cache has been updated:
//
//	hot, _ := cache.NewCacheService(cache.DefaultConfig())
//	docs := cache.NewTiered(persistent, hot, nil)
//
// Hot keys are built by a KeySerializer as entry::<id>::<version>, so all versions of
// one entity can be dropped by prefix.
package cache
