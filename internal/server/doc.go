// Package server provides HTTP routing, middleware, and the JSON API over the library and download manager.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns.
//
// # Handlers
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// [LibraryHandler] serves songs, albums, artists and playlists, including playlist exports in any
// formatter format. [DownloadHandler] starts downloads, pauses, resumes and cancels them, and streams
// progress as server-sent events from /api/downloads/events.
//
// Errors are returned as {"error": "..."} with a status derived from the shared sentinel errors:
// not found is 404, invalid input 400, and state conflicts (already in library, download active,
// invalid state) 409.
package server
