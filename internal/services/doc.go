// Package services wraps the remote APIs tunebox depends on.
//
// # Search
//
// [SearchService] abstracts video search. [YouTubeService] implements it against the YouTube Data API v3,
// authenticating with a static API key sent as the "key" query parameter. Requests share a
// [rate.Limiter] so bulk lookups stay within quota.
//
// # Artwork
//
// [ImageService] searches for artwork. [UnsplashService] implements it with the "Client-ID" authorization scheme.
//
// # Streams
//
// [Resolver] turns a video id into a downloadable [models.Stream]. [StreamResolver] uses github.com/kkdai/youtube
// to read the video's formats, prefers audio-only formats and returns a direct URL that supports range requests.
//
// # Raw access
//
// [Fetcher] performs plain GET requests, used to download artwork and by the "api" debug command.
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrMissingCredentials] : API key not configured
//   - [shared.ErrAPIRequest] : non-2xx response, message taken from the error body when present
//   - [shared.ErrServiceUnavailable] : transport failure
//   - [shared.ErrNotFound] : unknown video or channel
//   - [shared.ErrNoStream] : video has no playable audio
package services
