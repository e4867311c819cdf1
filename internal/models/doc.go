// Package models defines domain entities and persistence interfaces for the tunebox music library.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [Video] : A video search result
//   - [Channel] : The uploader of a video
//   - [Image] : An image search result
//   - [Stream] : A resolved downloadable stream for a video
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Song] : A downloaded audio track with its media file and artwork
//   - [Album] : A collection of songs
//   - [Artist] : A performer, deduplicated by YouTube channel id
//   - [Playlist] : An ordered collection of songs
//
// [Thumbnail] is a value object holding the small, medium and large artwork file names of an entity.
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
