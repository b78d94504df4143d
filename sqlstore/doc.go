// Package sqlstore is the relational [sias.Store] implementation.
//
// It runs on SQLite (modernc.org/sqlite, driver "sqlite") or PostgreSQL
// (pgx stdlib, driver "pgx") through sqlx. Queries are written with '?'
// placeholders and rebound per driver. Timestamps are stored as Unix
// milliseconds so the schema is identical on both engines; zero means unset.
//
// Failures map onto the engine's sentinels: a missing row is
// [sias.ErrNotFound], a duplicate email is [sias.ErrEmailTaken], and anything
// else wraps [sias.ErrStoreUnavailable].
package sqlstore
