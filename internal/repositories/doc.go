// Package repositories implements SQLite persistence for the library entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [SongRepository] : Downloaded songs, unique by source video among live rows
//   - [AlbumRepository] : Albums; deleting one detaches its songs
//   - [ArtistRepository] : Artists deduplicated by YouTube channel id via [ArtistRepository.FindOrCreate]
//   - [PlaylistRepository] : Playlists and their ordered membership
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
