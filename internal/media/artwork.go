package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// minDimension is the smallest edge Compress will shrink an image to.
const minDimension = 16

const qualityStep = 10

// Decode decodes JPEG, PNG, GIF and WebP data.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode image: %v", shared.ErrInvalidInput, err)
	}
	return img, format, nil
}

// Resize scales img so its longest edge is at most maxDim, keeping the aspect ratio.
// Images already within bounds are returned unchanged.
func Resize(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// CompressOptions bounds the JPEG encoding loop.
type CompressOptions struct {
	MaxBytes   int // zero disables the size target
	MaxQuality int
	MinQuality int
}

// Compress encodes img as JPEG no larger than opts.MaxBytes.
//
// Quality steps down from MaxQuality to MinQuality; when even MinQuality is too large the image is
// shrunk to three quarters and the loop restarts. Once the image is down to the minimum dimension the
// smallest encoding produced is returned.
func Compress(img image.Image, opts CompressOptions) ([]byte, error) {
	maxQ := clampQuality(opts.MaxQuality, 90)
	minQ := min(clampQuality(opts.MinQuality, 40), maxQ)

	var smallest []byte
	for {
		for q := maxQ; ; q -= qualityStep {
			q = max(q, minQ)

			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
				return nil, fmt.Errorf("encode jpeg: %w", err)
			}

			if smallest == nil || buf.Len() < len(smallest) {
				smallest = buf.Bytes()
			}
			if opts.MaxBytes <= 0 || buf.Len() <= opts.MaxBytes {
				return buf.Bytes(), nil
			}
			if q == minQ {
				break
			}
		}

		b := img.Bounds()
		longest := max(b.Dx(), b.Dy())
		if longest <= minDimension {
			return smallest, nil
		}
		img = Resize(img, max(minDimension, longest*3/4))
	}
}

func clampQuality(q, fallback int) int {
	if q <= 0 {
		return fallback
	}
	return min(q, 100)
}

// TierFilename returns the artwork file name for id at size, e.g. "abc_small.jpg".
func TierFilename(id string, size models.Size) string {
	return fmt.Sprintf("%s_%s.jpg", shared.SanitizeFilename(id), size)
}

// SaveTiers decodes data and writes small, medium and large JPEG renditions into dir.
//
// Files are named by [TierFilename]. If any write fails, files already written are removed.
func SaveTiers(data []byte, dir, id string, cfg shared.ArtworkConfig) (models.Thumbnail, error) {
	img, _, err := Decode(data)
	if err != nil {
		return models.Thumbnail{}, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.Thumbnail{}, fmt.Errorf("failed to create images directory: %w", err)
	}

	opts := CompressOptions{MaxBytes: cfg.MaxBytes, MaxQuality: cfg.MaxQuality, MinQuality: cfg.MinQuality}
	dims := map[models.Size]int{
		models.SizeSmall:  cfg.Small,
		models.SizeMedium: cfg.Medium,
		models.SizeLarge:  cfg.Large,
	}

	var (
		thumb   models.Thumbnail
		written []string
	)
	cleanup := func() {
		for _, p := range written {
			os.Remove(p)
		}
	}

	for _, size := range models.Sizes {
		encoded, err := Compress(Resize(img, dims[size]), opts)
		if err != nil {
			cleanup()
			return models.Thumbnail{}, err
		}

		name := TierFilename(id, size)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, encoded, 0644); err != nil {
			cleanup()
			return models.Thumbnail{}, fmt.Errorf("failed to write %s: %w", name, err)
		}

		written = append(written, path)
		thumb.Set(size, name)
	}

	return thumb, nil
}
