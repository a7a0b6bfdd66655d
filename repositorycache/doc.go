// Package repositorycache keeps cached XML documents in step with a go-repository-bun
// repository.
//
// # Overview
//
// InvalidatingRepository wraps a base repository.Repository[T], the source of truth for
// the entities whose documents are cached. Reads pass straight through. Successful
// writes drop the cached documents of every record they touched, for every format
// version, so the next render regenerates them.
//
// # Basic Usage
//
//	base := repository.NewRepository[*Article](db, handlers)
//	articles := repositorycache.New(base, eng, func(a *Article) (int64, bool) {
//		return a.ID, a.ID != 0
//	})
//
//	// Use exactly like the base repository
//	_, err := articles.Update(ctx, article)
//
// eng is usually an *engine.Engine; anything with an Invalidate(ctx, id) method works.
//
// # Invalidating vs Pass-through Operations
//
// These operations invalidate the documents of the records they return or receive:
//   - Update, Upsert and their Many and Tx variants
//   - Delete, ForceDelete and their Tx variants
//
// These operations pass through untouched:
//   - All reads, including the Tx variants
//   - Create, CreateMany, GetOrCreate and their Tx variants; new records have no documents
//   - Raw SQL queries
//
// DeleteMany and DeleteWhere only carry criteria, so the affected ids are unknown. The
// documents they orphan are removed by the consistency checker on its next run.
//
// # Error Handling
//
// Errors from the base repository are propagated unchanged and skip invalidation.
// Invalidation failures are logged and never fail a write that already succeeded.
package repositorycache
