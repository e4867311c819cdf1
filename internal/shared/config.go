package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library     LibraryConfig     `toml:"library"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	History     HistoryConfig     `toml:"history"`
	Download    DownloadConfig    `toml:"download"`
	Artwork     ArtworkConfig     `toml:"artwork"`
	Player      PlayerConfig      `toml:"player"`
	Server      ServerConfig      `toml:"server"`
}

// LibraryConfig describes the on-disk library layout.
type LibraryConfig struct {
	Dir         string `toml:"dir"`
	MediaDir    string `toml:"media_dir"`
	ImagesDir   string `toml:"images_dir"`
	AudioFormat string `toml:"audio_format"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	YouTube  YouTubeConfig  `toml:"youtube"`
	Unsplash UnsplashConfig `toml:"unsplash"`
}

// YouTubeConfig contains YouTube Data API credentials.
type YouTubeConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// UnsplashConfig contains Unsplash API credentials.
type UnsplashConfig struct {
	AccessKey string `toml:"access_key"`
	BaseURL   string `toml:"base_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// HistoryConfig points at the playback history store.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// DownloadConfig tunes the download pipeline.
type DownloadConfig struct {
	MaxParallel    int     `toml:"max_parallel"`
	RateLimit      float64 `toml:"rate_limit"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	FFmpegPath     string  `toml:"ffmpeg_path"`
	FFprobePath    string  `toml:"ffprobe_path"`
}

// ArtworkConfig holds thumbnail tier sizes (longest edge, pixels) and compression bounds.
type ArtworkConfig struct {
	Small      int `toml:"small"`
	Medium     int `toml:"medium"`
	Large      int `toml:"large"`
	MaxBytes   int `toml:"max_bytes"`
	MaxQuality int `toml:"max_quality"`
	MinQuality int `toml:"min_quality"`
}

// PlayerConfig contains mpv settings.
type PlayerConfig struct {
	MpvPath    string `toml:"mpv_path"`
	SocketPath string `toml:"socket_path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MediaPath returns the absolute-or-relative media directory, resolved against the library dir.
func (l LibraryConfig) MediaPath() string {
	return resolveUnder(l.Dir, l.MediaDir)
}

// ImagesPath returns the images directory, resolved against the library dir.
func (l LibraryConfig) ImagesPath() string {
	return resolveUnder(l.Dir, l.ImagesDir)
}

func resolveUnder(root, dir string) string {
	root = ExpandHome(root)
	dir = ExpandHome(dir)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.Library.Dir == "":
		return fmt.Errorf("%w: library.dir is required", ErrInvalidConfig)
	case c.Library.AudioFormat != "m4a" && c.Library.AudioFormat != "mp3":
		return fmt.Errorf("%w: library.audio_format must be m4a or mp3, got %q", ErrInvalidConfig, c.Library.AudioFormat)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	case c.Download.MaxParallel < 1:
		return fmt.Errorf("%w: download.max_parallel must be positive", ErrInvalidConfig)
	case c.Artwork.Small <= 0 || c.Artwork.Medium < c.Artwork.Small || c.Artwork.Large < c.Artwork.Medium:
		return fmt.Errorf("%w: artwork sizes must satisfy 0 < small <= medium <= large", ErrInvalidConfig)
	case c.Artwork.MinQuality < 1 || c.Artwork.MaxQuality > 100 || c.Artwork.MinQuality > c.Artwork.MaxQuality:
		return fmt.Errorf("%w: artwork quality bounds must satisfy 1 <= min <= max <= 100", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
