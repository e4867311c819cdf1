// package library manages the on-disk song library: media and artwork files and the records that point at them
package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// Files resolves library-relative names to paths under the media and images directories.
type Files struct {
	media  string
	images string
}

// NewFiles creates a Files layout from the library config.
func NewFiles(cfg shared.LibraryConfig) *Files {
	return &Files{media: cfg.MediaPath(), images: cfg.ImagesPath()}
}

func (f *Files) MediaDir() string { return f.media }
func (f *Files) ImagesDir() string { return f.images }

// MediaPath returns the absolute path of a media file name.
func (f *Files) MediaPath(name string) string {
	return filepath.Join(f.media, name)
}

// ImagePath returns the absolute path of an artwork file name.
func (f *Files) ImagePath(name string) string {
	return filepath.Join(f.images, name)
}

// EnsureDirs creates the media and images directories.
func (f *Files) EnsureDirs() error {
	for _, dir := range []string{f.media, f.images} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists reports whether path names a regular file.
func (f *Files) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// RemoveMedia deletes a media file. A missing file is not an error.
func (f *Files) RemoveMedia(name string) error {
	if name == "" {
		return nil
	}
	return removeIfExists(f.MediaPath(name))
}

// RemoveThumbnail deletes every tier of t from the images directory.
func (f *Files) RemoveThumbnail(t models.Thumbnail) error {
	var errs []error
	for _, path := range t.Paths(f.images) {
		if err := removeIfExists(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MissingThumbnails returns the tiers of t whose files do not exist.
func (f *Files) MissingThumbnails(t models.Thumbnail) []string {
	var missing []string
	for _, name := range t.Files() {
		if !f.Exists(f.ImagePath(name)) {
			missing = append(missing, name)
		}
	}
	return missing
}

// CopyIntoMedia copies src into the media directory and returns the new file name.
//
// Names are sanitized; a name already taken gets a short unique prefix.
func (f *Files) CopyIntoMedia(src string) (string, error) {
	if err := os.MkdirAll(f.media, 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	name := shared.SanitizeFilename(filepath.Base(src))
	if f.Exists(f.MediaPath(name)) {
		name = strings.SplitN(shared.GenerateID(), "-", 2)[0] + "_" + name
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := f.MediaPath(name)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}

	return name, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
