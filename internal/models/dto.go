package models

import "time"

// Video is a search result from the video search API.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title"`
	Duration     int       `json:"duration,omitempty"` // seconds, zero when unknown
	PublishedAt  time.Time `json:"published_at"`
	Thumbnails   ImageURLs `json:"thumbnails"`
}

// Channel describes the uploader of a video.
type Channel struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Thumbnails  ImageURLs `json:"thumbnails"`
}

// Image is a result from the image search API.
type Image struct {
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	URLs        ImageURLs `json:"urls"`
}

// ImageURLs holds remote image locations by tier.
type ImageURLs struct {
	Small  string `json:"small,omitempty"`
	Medium string `json:"medium,omitempty"`
	Large  string `json:"large,omitempty"`
}

// Best returns the largest available URL.
func (u ImageURLs) Best() string {
	switch {
	case u.Large != "":
		return u.Large
	case u.Medium != "":
		return u.Medium
	}
	return u.Small
}

// Stream is a resolved, directly downloadable media stream for a video.
type Stream struct {
	VideoID       string
	URL           string
	MimeType      string
	Extension     string // container extension without the dot, e.g. "mp4" or "webm"
	ContentLength int64  // bytes, zero when unknown
	Bitrate       int
	Title         string
	Author        string
	ChannelID     string
	Duration      int // seconds
	Thumbnails    ImageURLs
}

// Listing is an exportable list of songs (a playlist, an album or the whole library) with names resolved.
type Listing struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Cover       string         `json:"-" yaml:"-"` // local artwork path, empty when there is none
	Tracks      []ListingTrack `json:"tracks" yaml:"tracks"`
}

// ListingTrack is one song in a [Listing].
type ListingTrack struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Artist   string `json:"artist,omitempty" yaml:"artist,omitempty"`
	Album    string `json:"album,omitempty" yaml:"album,omitempty"`
	Duration int    `json:"duration" yaml:"duration"`
	VideoID  string `json:"video_id,omitempty" yaml:"video_id,omitempty"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"` // absolute media path
}

// TotalDuration sums the track durations in seconds.
func (l *Listing) TotalDuration() int {
	total := 0
	for _, t := range l.Tracks {
		total += t.Duration
	}
	return total
}
