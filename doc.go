// Package rewind provides a two-tier persistence layer for checkpointing
// the state of long-running, resumable workflows. Checkpoints are written
// through a fast TTL-bounded cache tier and upserted into a durable
// relational tier; reads fall back from cache to durable storage and
// write back on the way out.
//
// Rewind is designed as a library, not a service. Import it, wire a cache
// and a durable client, and call Put at every suspension point of your
// workflow runtime.
//
// # Quick Start
//
//	db, err := sqlite.New("checkpoints.db")
//	// handle err, defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
//
//	store, err := rewind.New(db,
//	    rewind.WithCache(memory.New()),
//	    rewind.WithCacheTTL(6*time.Hour),
//	)
//
//	handle, err := store.Put(ctx, &rewind.Checkpoint{
//	    ThreadID: "order-7431",
//	    ID:       "step-2",
//	    Payload:  stateBytes,
//	    Metadata: map[string]any{"stage": "payment"},
//	})
//
// # Architecture
//
// Each tier is a narrow transport interface (cache.Client, durable.Client)
// with interchangeable engine implementations (Redis or in-memory for the
// cache, Postgres or SQLite for the durable tier). The Store owns the key
// model, the SQL, and the serialization; tier clients only move bytes.
// The cache is never the system of record: any cache failure degrades to
// a durable read, and "latest checkpoint" queries always consult the
// durable tier so ordering never depends on what happens to be cached.
package rewind
