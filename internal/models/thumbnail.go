package models

import "path/filepath"

// Size names a thumbnail tier.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Sizes lists the tiers from smallest to largest.
var Sizes = []Size{SizeSmall, SizeMedium, SizeLarge}

// Thumbnail holds the file names of an artwork image at three sizes.
//
// Names are relative to the library's images directory; an empty name means the tier is absent.
type Thumbnail struct {
	Small  string `json:"small,omitempty" yaml:"small,omitempty"`
	Medium string `json:"medium,omitempty" yaml:"medium,omitempty"`
	Large  string `json:"large,omitempty" yaml:"large,omitempty"`
}

// Get returns the file name for a tier.
func (t Thumbnail) Get(size Size) string {
	switch size {
	case SizeSmall:
		return t.Small
	case SizeMedium:
		return t.Medium
	case SizeLarge:
		return t.Large
	}
	return ""
}

// Set stores the file name for a tier.
func (t *Thumbnail) Set(size Size, name string) {
	switch size {
	case SizeSmall:
		t.Small = name
	case SizeMedium:
		t.Medium = name
	case SizeLarge:
		t.Large = name
	}
}

// Files returns the non-empty file names, smallest first.
func (t Thumbnail) Files() []string {
	var files []string
	for _, s := range Sizes {
		if name := t.Get(s); name != "" {
			files = append(files, name)
		}
	}
	return files
}

// IsEmpty reports whether no tier is set.
func (t Thumbnail) IsEmpty() bool {
	return t.Small == "" && t.Medium == "" && t.Large == ""
}

// Paths resolves the non-empty file names against dir.
func (t Thumbnail) Paths(dir string) []string {
	files := t.Files()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(dir, f)
	}
	return paths
}

// Best returns the largest available tier, falling back to smaller ones.
func (t Thumbnail) Best() string {
	for i := len(Sizes) - 1; i >= 0; i-- {
		if name := t.Get(Sizes[i]); name != "" {
			return name
		}
	}
	return ""
}
