// Package store persists the call-intake data model in SQLite and exposes
// helpers for driving record lifecycles.
//
// The Store manages database connections, schema initialization, call status
// transitions, heartbeat tracking, stale-processing recovery, and the
// customer/extraction/feedback/job tables the engines operate on. Aggregate
// counters on customers are mutated only through atomic SQL increments so
// concurrent job activity never loses updates, and customer creation is
// arbitrated by a unique (user_id, phone) index rather than in-process
// locking.
//
// Treat this package as the single source of truth for persistence semantics;
// when you add statuses or fields, update schema.sql and bump schemaVersion.
package store
