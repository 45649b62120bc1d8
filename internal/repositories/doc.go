// Package repositories implements SQLite persistence for the catalog.
//
// [CatalogWriter] upserts canonical entities by natural key: a new key is inserted, an
// existing key has its mutable fields overwritten and updated_at refreshed while
// created_at is left alone. Relation rows use their full tuple as the key and are no-ops
// when already present. A record that fails (validation or a constraint) is logged as a
// [shared.WriteError] and the batch moves on.
//
// Key Implementations:
//   - [CatalogWriter] : upserts and read helpers for artists, albums, tracks and relations
//   - [RunRepository] : ingest run history with status tracking
//
// Timestamps are stored as RFC 3339 text in UTC.
package repositories
