// Package models defines the canonical catalog entities written by the ingest pipeline
// and the raw provider shapes they are built from.
//
// The package contains three categories of types:
//
// 1. Raw provider records: untrusted, provider-shaped input
//   - [RawReleaseGroup] : Album-level grouping with primary/secondary types and artist credits
//   - [RawRecording] : Track-level recording with optional length and position
//   - [RawTrackItem] : A recording paired with the release group it was listed on
//
// 2. Canonical entities: normalized rows keyed by provider natural keys
//   - [Artist], [Album], [Track]
//   - [AlbumArtist] : (album, artist, role) membership
//   - [AlbumTrack] : (album, track, position, disc) membership
//
// 3. Run reporting
//   - [WriteResult], [EntityCounts], [StrategySummary], [RunSummary]
//
// Identity is always the natural key. Two providers describing the same album
// produce two rows; no cross-provider matching is attempted.
package models
