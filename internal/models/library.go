package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Song is a downloaded audio track in the library.
//
// ArtistID and AlbumID are empty when the song is not attached to an artist or album.
// MediaFile is relative to the library's media directory.
type Song struct {
	record
	Title     string
	VideoID   string
	MediaFile string
	Duration  int // seconds
	ArtistID  string
	AlbumID   string
	Thumbnail Thumbnail
}

// NewSong creates a [Song] with a sequence number and timestamps set to now.
func NewSong(sequence int, title, videoID string) *Song {
	return &Song{record: newRecord(sequence), Title: title, VideoID: videoID}
}

// Validate requires a title and either a source video or a media file.
func (s *Song) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("song title is required")
	}
	if s.VideoID == "" && s.MediaFile == "" {
		return fmt.Errorf("song requires a video id or a media file")
	}
	if s.Duration < 0 {
		return fmt.Errorf("song duration cannot be negative")
	}
	return nil
}

func (s *Song) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		VideoID   string    `json:"video_id,omitempty"`
		MediaFile string    `json:"media_file,omitempty"`
		Duration  int       `json:"duration"`
		ArtistID  string    `json:"artist_id,omitempty"`
		AlbumID   string    `json:"album_id,omitempty"`
		Thumbnail Thumbnail `json:"thumbnail"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}{s.id, s.Title, s.VideoID, s.MediaFile, s.Duration, s.ArtistID, s.AlbumID, s.Thumbnail, s.createdAt, s.updatedAt})
}

// Album groups songs, optionally under an artist.
type Album struct {
	record
	Title     string
	ArtistID  string
	Thumbnail Thumbnail
}

// NewAlbum creates an [Album] with a sequence number and timestamps set to now.
func NewAlbum(sequence int, title, artistID string) *Album {
	return &Album{record: newRecord(sequence), Title: title, ArtistID: artistID}
}

func (a *Album) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("album title is required")
	}
	return nil
}

func (a *Album) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		ArtistID  string    `json:"artist_id,omitempty"`
		Thumbnail Thumbnail `json:"thumbnail"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}{a.id, a.Title, a.ArtistID, a.Thumbnail, a.createdAt, a.updatedAt})
}

// Artist is a performer or uploader.
//
// ChannelID is the YouTube channel the artist was resolved from and is unique among live artists.
// Manually created artists have no channel.
type Artist struct {
	record
	Name      string
	ChannelID string
	Thumbnail Thumbnail
}

// NewArtist creates an [Artist] with a sequence number and timestamps set to now.
func NewArtist(sequence int, name, channelID string) *Artist {
	return &Artist{record: newRecord(sequence), Name: name, ChannelID: channelID}
}

func (a *Artist) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("artist name is required")
	}
	return nil
}

func (a *Artist) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		ChannelID string    `json:"channel_id,omitempty"`
		Thumbnail Thumbnail `json:"thumbnail"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}{a.id, a.Name, a.ChannelID, a.Thumbnail, a.createdAt, a.updatedAt})
}

// Playlist is a named, ordered collection of songs.
//
// Membership is stored separately; see PlaylistRepository.Songs.
type Playlist struct {
	record
	Name        string
	Description string
	Thumbnail   Thumbnail
}

// NewPlaylist creates a [Playlist] with a sequence number and timestamps set to now.
func NewPlaylist(sequence int, name, description string) *Playlist {
	return &Playlist{record: newRecord(sequence), Name: name, Description: description}
}

func (p *Playlist) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("playlist name is required")
	}
	return nil
}

func (p *Playlist) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		Thumbnail   Thumbnail `json:"thumbnail"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}{p.id, p.Name, p.Description, p.Thumbnail, p.createdAt, p.updatedAt})
}
