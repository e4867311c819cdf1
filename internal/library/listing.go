package library

import (
	"github.com/desertthunder/tunebox/internal/models"
)

// PlaylistListing builds an export listing for a playlist, in playlist order.
func (s *Service) PlaylistListing(id string) (*models.Listing, error) {
	playlist, err := s.playlists.Get(id)
	if err != nil {
		return nil, err
	}
	songs, err := s.playlists.Songs(id)
	if err != nil {
		return nil, err
	}
	return s.listing(playlist.ID(), playlist.Name, playlist.Description, playlist.Thumbnail, songs)
}

// AlbumListing builds an export listing for an album.
func (s *Service) AlbumListing(id string) (*models.Listing, error) {
	album, err := s.albums.Get(id)
	if err != nil {
		return nil, err
	}
	songs, err := s.songs.List(map[string]any{"album_id": id})
	if err != nil {
		return nil, err
	}
	return s.listing(album.ID(), album.Title, "", album.Thumbnail, songs)
}

// LibraryListing lists every song in the library.
func (s *Service) LibraryListing(name string) (*models.Listing, error) {
	songs, err := s.songs.List(nil)
	if err != nil {
		return nil, err
	}
	return s.listing("library", name, "", models.Thumbnail{}, songs)
}

// ListingFor builds the listing of any song collection.
func (s *Service) ListingFor(kind Kind, id string) (*models.Listing, error) {
	switch kind {
	case KindPlaylist:
		return s.PlaylistListing(id)
	case KindAlbum:
		return s.AlbumListing(id)
	case KindArtist:
		artist, err := s.artists.Get(id)
		if err != nil {
			return nil, err
		}
		songs, err := s.songs.List(map[string]any{"artist_id": id})
		if err != nil {
			return nil, err
		}
		return s.listing(artist.ID(), artist.Name, "", artist.Thumbnail, songs)
	default:
		song, err := s.songs.Get(id)
		if err != nil {
			return nil, err
		}
		return s.listing(song.ID(), song.Title, "", song.Thumbnail, []*models.Song{song})
	}
}

// Names returns artist and album names keyed by id.
func (s *Service) Names() (artists, albums map[string]string, err error) {
	artistList, err := s.artists.List(nil)
	if err != nil {
		return nil, nil, err
	}
	albumList, err := s.albums.List(nil)
	if err != nil {
		return nil, nil, err
	}

	artists = make(map[string]string, len(artistList))
	for _, a := range artistList {
		artists[a.ID()] = a.Name
	}
	albums = make(map[string]string, len(albumList))
	for _, a := range albumList {
		albums[a.ID()] = a.Title
	}
	return artists, albums, nil
}

func (s *Service) listing(id, name, description string, thumb models.Thumbnail, songs []*models.Song) (*models.Listing, error) {
	artists, albums, err := s.Names()
	if err != nil {
		return nil, err
	}

	l := &models.Listing{ID: id, Name: name, Description: description, Tracks: make([]models.ListingTrack, 0, len(songs))}
	if best := thumb.Best(); best != "" {
		l.Cover = s.files.ImagePath(best)
	}

	for _, song := range songs {
		track := models.ListingTrack{
			ID:       song.ID(),
			Title:    song.Title,
			Artist:   artists[song.ArtistID],
			Album:    albums[song.AlbumID],
			Duration: song.Duration,
			VideoID:  song.VideoID,
		}
		if song.MediaFile != "" {
			track.Path = s.files.MediaPath(song.MediaFile)
		}
		l.Tracks = append(l.Tracks, track)
	}
	return l, nil
}
