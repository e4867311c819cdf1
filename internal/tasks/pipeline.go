package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/tunebox/internal/media"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// run takes a job from a video id to a saved song.
//
// Steps: resolve the stream, download it, extract the audio, delete the download, then fetch artwork
// and resolve the artist concurrently before saving the song. Until the song is saved every file is
// written under a name unique to the job, so an error only removes the job's own files and never
// touches a song another process saved for the same video. The staged files are renamed into place
// once the song row exists.
func (m *Manager) run(ctx context.Context, st *jobState) (songID string, err error) {
	files := m.lib.Files()
	if err := files.EnsureDirs(); err != nil {
		return "", err
	}

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, path := range written {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				m.logger.Warn("failed to clean up", "path", path, "error", rmErr)
			}
		}
	}()

	videoID := st.job.VideoID
	base := shared.SanitizeFilename(videoID)
	staged := base + "." + stagingTag(st.job.ID)

	m.setStatus(st, StatusResolving)
	stream, err := m.resolver.Resolve(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", videoID, err)
	}
	m.update(st, false, func(j *Job) {
		j.Title = stream.Title
		j.BytesTotal = stream.ContentLength
	})

	video := files.MediaPath(staged + ".download." + stream.Extension)
	written = append(written, video)
	if err := m.download(ctx, st, stream.URL, video); err != nil {
		return "", err
	}

	audio := files.MediaPath(staged + ".part." + m.audioExt)
	written = append(written, audio)

	m.setStatus(st, StatusExtracting)
	if err := m.extract(ctx, st, video, audio); err != nil {
		return "", err
	}

	if err := os.Remove(video); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("failed to remove downloaded video", "path", video, "error", err)
	}

	m.setStatus(st, StatusFinalizing)

	var (
		thumb  models.Thumbnail
		artist *models.Artist
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := m.saveArtwork(gctx, stream.Thumbnails, staged)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			m.logger.Warn("artwork unavailable, saving song without it", "video", videoID, "error", err)
			return nil
		}
		thumb = t
		return nil
	})
	g.Go(func() error {
		a, err := m.resolveArtist(gctx, stream, st.job.ID)
		artist = a
		return err
	})

	waitErr := g.Wait()
	written = append(written, thumb.Paths(files.ImagesDir())...)
	if waitErr != nil {
		return "", waitErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	song := models.NewSong(0, stream.Title, videoID)
	song.MediaFile = base + "." + m.audioExt
	song.Duration = stream.Duration
	song.Thumbnail = finalThumbnail(thumb, base)
	if artist != nil {
		song.ArtistID = artist.ID()
	}
	if song.Title == "" {
		song.Title = videoID
	}

	if err := m.lib.Songs().Create(song); err != nil {
		return "", err
	}

	// the row is ours from here, so its final names are too
	moves := map[string]string{audio: files.MediaPath(song.MediaFile)}
	for _, size := range models.Sizes {
		if name := thumb.Get(size); name != "" {
			moves[files.ImagePath(name)] = files.ImagePath(song.Thumbnail.Get(size))
		}
	}
	for from, to := range moves {
		written = append(written, to)
		if err := os.Rename(from, to); err != nil {
			if delErr := m.lib.Songs().Delete(song.ID()); delErr != nil {
				m.logger.Warn("failed to remove song after rename failed", "id", song.ID(), "error", delErr)
			}
			return "", fmt.Errorf("failed to move %s into the library: %w", filepath.Base(to), err)
		}
	}
	return song.ID(), nil
}

// stagingTag shortens a job id into a file name suffix.
func stagingTag(jobID string) string {
	tag := shared.SanitizeFilename(jobID)
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return tag
}

// finalThumbnail renames each tier of staged after base.
func finalThumbnail(staged models.Thumbnail, base string) models.Thumbnail {
	var out models.Thumbnail
	for _, size := range models.Sizes {
		if staged.Get(size) != "" {
			out.Set(size, media.TierFilename(base, size))
		}
	}
	return out
}

// download runs transfer attempts until the file is complete, waiting while the job is paused.
func (m *Manager) download(ctx context.Context, st *jobState, url, path string) error {
	lastPct := -1
	onProgress := func(done, total int64) {
		pct := -1
		if total > 0 {
			pct = int(done * 100 / total)
		}
		m.update(st, pct != lastPct, func(j *Job) {
			j.BytesDone = done
			if total > 0 {
				j.BytesTotal = total
				j.Progress = float64(done) / float64(total)
			}
		})
		lastPct = pct
	}

	for {
		attemptCtx, stop := context.WithCancel(ctx)

		m.mu.Lock()
		resume := st.resume
		if resume == nil {
			st.attempt = stop
			st.job.Status = StatusDownloading
		}
		m.mu.Unlock()

		if resume != nil {
			stop()
			select {
			case <-resume:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, err := m.transfer.Download(attemptCtx, url, path, onProgress)
		stop()

		m.mu.Lock()
		st.attempt = nil
		paused := st.resume != nil
		if err == nil && paused {
			st.resume = nil
			paused = false
		}
		m.mu.Unlock()

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			return nil
		case paused:
			continue
		default:
			return fmt.Errorf("download %s: %w", st.job.VideoID, err)
		}
	}
}

// extract converts the download to audio, bounded by the configured timeout.
func (m *Manager) extract(ctx context.Context, st *jobState, in, out string) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	lastPct := -1
	return m.extractor.ExtractAudio(ctx, in, out, func(p float64) {
		pct := int(p * 100)
		m.update(st, pct != lastPct, func(j *Job) { j.Progress = p })
		lastPct = pct
	})
}

// saveArtwork downloads the best thumbnail and writes the three tiers named after base.
func (m *Manager) saveArtwork(ctx context.Context, urls models.ImageURLs, base string) (models.Thumbnail, error) {
	src := urls.Best()
	if src == "" {
		return models.Thumbnail{}, fmt.Errorf("%w: no thumbnail", shared.ErrNotFound)
	}

	data, err := m.fetcher.Bytes(ctx, src)
	if err != nil {
		return models.Thumbnail{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Thumbnail{}, err
	}

	return media.SaveTiers(data, m.lib.Files().ImagesDir(), base, m.artwork)
}

// resolveArtist finds the artist by channel id, creating it with channel details and artwork when new.
//
// New artwork is named after the channel and the job, so losing a race to another writer only removes
// this job's files. Channel lookups are best effort: the stream's author name is used when the search
// API is unavailable.
func (m *Manager) resolveArtist(ctx context.Context, stream *models.Stream, jobID string) (*models.Artist, error) {
	artists := m.lib.Artists()

	if stream.ChannelID != "" {
		existing, err := artists.GetByChannelID(stream.ChannelID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}

	name := stream.Author
	var thumb models.Thumbnail

	if m.search != nil && stream.ChannelID != "" {
		channel, err := m.search.Channel(ctx, stream.ChannelID)
		switch {
		case err != nil:
			m.logger.Debug("channel lookup failed, using stream author", "channel", stream.ChannelID, "error", err)
		default:
			if channel.Title != "" {
				name = channel.Title
			}
			if t, err := m.saveArtwork(ctx, channel.Thumbnails, "artist-"+shared.SanitizeFilename(stream.ChannelID)+"."+stagingTag(jobID)); err == nil {
				thumb = t
			} else {
				m.logger.Debug("artist artwork unavailable", "channel", stream.ChannelID, "error", err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		m.lib.Files().RemoveThumbnail(thumb)
		return nil, err
	}

	if name == "" {
		if stream.ChannelID == "" {
			return nil, nil
		}
		name = stream.ChannelID
	}

	artist, created, err := artists.FindOrCreate(stream.ChannelID, name, thumb)
	if err != nil {
		m.lib.Files().RemoveThumbnail(thumb)
		return nil, err
	}
	if created {
		m.logger.Info("created artist", "id", artist.ID(), "name", artist.Name, "channel", stream.ChannelID)
		return artist, nil
	}

	// another job created the artist first
	var orphaned models.Thumbnail
	for _, size := range models.Sizes {
		if name := thumb.Get(size); name != "" && name != artist.Thumbnail.Get(size) {
			orphaned.Set(size, name)
		}
	}
	m.lib.Files().RemoveThumbnail(orphaned)
	return artist, nil
}
