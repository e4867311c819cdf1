package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/shared"
)

func queryArg(cmd *cli.Command) (string, error) {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return "", fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	return query, nil
}

// SearchVideos searches YouTube and prints matching videos.
func (r *Runner) SearchVideos(ctx context.Context, cmd *cli.Command) error {
	query, err := queryArg(cmd)
	if err != nil {
		return err
	}
	search, err := r.searchService()
	if err != nil {
		return err
	}

	r.logger.Info("searching videos", "service", search.Name(), "query", query)

	videos, err := search.Search(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(videos, true)
	}
	if len(videos) == 0 {
		return r.writePlain("No videos found for %q\n", query)
	}

	rows := make([]string, 0, len(videos))
	for _, v := range videos {
		duration := "-"
		if v.Duration > 0 {
			duration = shared.FormatDuration(v.Duration)
		}
		rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", v.ID, duration, v.ChannelTitle, v.Title))
	}
	if err := r.writeTable("VIDEO\tLENGTH\tCHANNEL\tTITLE", rows); err != nil {
		return err
	}
	return r.writePlainln("Download with: tunebox download <video-id>")
}

// SearchImages searches Unsplash and prints matching photos.
func (r *Runner) SearchImages(ctx context.Context, cmd *cli.Command) error {
	query, err := queryArg(cmd)
	if err != nil {
		return err
	}
	images, err := r.imageService()
	if err != nil {
		return err
	}

	r.logger.Info("searching images", "service", images.Name(), "query", query)

	results, err := images.SearchImages(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	if len(results) == 0 {
		return r.writePlain("No images found for %q\n", query)
	}

	rows := make([]string, 0, len(results))
	for _, img := range results {
		rows = append(rows, fmt.Sprintf("%s\t%dx%d\t%s\t%s", img.ID, img.Width, img.Height, img.Author, img.URLs.Best()))
	}
	if err := r.writeTable("ID\tSIZE\tAUTHOR\tURL", rows); err != nil {
		return err
	}
	return r.writePlainln("Use a URL with: tunebox songs edit <song-id> --artwork <url>")
}
