// Package tasks downloads videos into the library with real-time progress reporting.
//
// # Pipeline
//
// [Manager.Start] queues a job that runs these steps:
//
//  1. Resolve a stream URL for the video ([services.Resolver])
//  2. Download it to the media directory ([Transfer])
//  3. Extract an audio-only file ([Extractor], ffmpeg)
//  4. Delete the downloaded video
//  5. Fetch artwork and write three size tiers
//  6. Find or create the artist by channel id
//  7. Save the song
//
// Steps 5 and 6 run concurrently and are joined before the song is saved. A job that fails or is
// cancelled removes every file it wrote and saves no song.
//
// # Pause and Resume
//
// [Manager.Pause] cancels the running transfer attempt and keeps the partial file.
// [Manager.Resume] starts a new attempt with an HTTP Range request for the remaining bytes.
//
// # Progress Reporting
//
// All updates go through non-blocking channels ([Manager.Subscribe]).
// The [ProgressUpdate] struct carries the phase, step counters, a message and a [Job] snapshot.
//
// # Batches
//
// [Manager.DownloadAll] feeds many video ids through a worker pool with a rate limiter.
package tasks
