// package services defines interfaces for the remote APIs the library talks to
//
// YouTube Data API (search), Unsplash (artwork search), YouTube streams (kkdai/youtube)
package services

import (
	"context"

	"github.com/desertthunder/tunebox/internal/models"
)

// SearchService finds videos and their uploaders.
type SearchService interface {
	// Search returns up to limit videos matching query.
	Search(ctx context.Context, query string, limit int) ([]models.Video, error)

	// Video retrieves a single video, including its duration.
	Video(ctx context.Context, videoID string) (*models.Video, error)

	// Channel retrieves the uploader of a video.
	Channel(ctx context.Context, channelID string) (*models.Channel, error)

	// Name returns the name of the service (e.g., "YouTube")
	Name() string
}

// ImageService searches for artwork.
type ImageService interface {
	SearchImages(ctx context.Context, query string, limit int) ([]models.Image, error)
	Name() string
}

// Resolver turns a video id into a directly downloadable stream.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (*models.Stream, error)
}
