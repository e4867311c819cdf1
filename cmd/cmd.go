// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func limitFlag(value int) cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of results",
		Value:   value,
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Show applied migrations instead of running them",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the file (default: the --config path)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// searchCommand queries the video and image search APIs.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search YouTube for videos or Unsplash for artwork",
		Commands: []*cli.Command{
			{
				Name:      "videos",
				Aliases:   []string{"v"},
				Usage:     "Search YouTube for music videos",
				ArgsUsage: "<query>",
				Flags:     []cli.Flag{limitFlag(10), jsonFlag()},
				Action:    r.SearchVideos,
			},
			{
				Name:      "images",
				Aliases:   []string{"i"},
				Usage:     "Search Unsplash for artwork",
				ArgsUsage: "<query>",
				Flags:     []cli.Flag{limitFlag(10), jsonFlag()},
				Action:    r.SearchImages,
			},
		},
	}
}

// downloadCommand downloads one or more videos into the library.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download videos and add their audio to the library",
		ArgsUsage: "<video-id|url>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Monitor downloads in an interactive view (p pause, r resume, c cancel)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent downloads when several ids are given",
				Value: 3,
			},
			&cli.BoolFlag{
				Name:  "skip-existing",
				Usage: "Skip videos already in the library instead of reporting them as failures",
				Value: true,
			},
		},
		Action: r.Download,
	}
}

// songsCommand manages library songs.
func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Manage library songs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List songs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Filter by title"},
					&cli.StringFlag{Name: "artist", Usage: "Filter by artist id"},
					&cli.StringFlag{Name: "album", Usage: "Filter by album id"},
					jsonFlag(),
				},
				Action: r.SongsList,
			},
			{
				Name:      "show",
				Usage:     "Show a song",
				ArgsUsage: "<song-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.SongsShow,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete songs with their media and artwork",
				ArgsUsage: "<song-id>...",
				Action:    r.SongsDelete,
			},
			{
				Name:      "edit",
				Usage:     "Edit a song's title, artist, album or artwork",
				ArgsUsage: "<song-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "New title"},
					&cli.StringFlag{Name: "artist", Usage: "Artist id (empty string detaches)"},
					&cli.StringFlag{Name: "album", Usage: "Album id (empty string detaches)"},
					&cli.StringFlag{Name: "artwork", Usage: "Image file or URL to use as artwork"},
				},
				Action: r.SongsEdit,
			},
			{
				Name:      "import",
				Usage:     "Copy local audio files into the library",
				ArgsUsage: "<path>...",
				Action:    r.SongsImport,
			},
		},
	}
}

// albumsCommand manages albums.
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "albums",
		Usage: "Manage albums",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List albums",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Filter by title"},
					&cli.StringFlag{Name: "artist", Usage: "Filter by artist id"},
					jsonFlag(),
				},
				Action: r.AlbumsList,
			},
			{
				Name:      "create",
				Usage:     "Create an album, optionally moving songs into it",
				ArgsUsage: "<title> [song-id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "artist", Usage: "Artist id"},
				},
				Action: r.AlbumsCreate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete albums; their songs stay in the library",
				ArgsUsage: "<album-id>...",
				Action:    r.AlbumsDelete,
			},
			{
				Name:      "add",
				Usage:     "Move songs into an album",
				ArgsUsage: "<album-id> <song-id>...",
				Action:    r.AlbumsAdd,
			},
		},
	}
}

// artistsCommand manages artists.
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artists",
		Usage: "Manage artists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List artists",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Filter by name"},
					jsonFlag(),
				},
				Action: r.ArtistsList,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete artists; their songs and albums stay in the library",
				ArgsUsage: "<artist-id>...",
				Action:    r.ArtistsDelete,
			},
		},
	}
}

// playlistsCommand manages playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Manage playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List playlists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its songs",
				ArgsUsage: "<playlist-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.PlaylistsShow,
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				ArgsUsage: "<name> [song-id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:      "edit",
				Usage:     "Rename a playlist or replace its songs",
				ArgsUsage: "<playlist-id> [song-id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "New name"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
					&cli.BoolFlag{Name: "clear", Usage: "Remove every song"},
					&cli.BoolFlag{Name: "append", Usage: "Add the given songs instead of replacing the set"},
				},
				Action: r.PlaylistsEdit,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete playlists; their songs stay in the library",
				ArgsUsage: "<playlist-id>...",
				Action:    r.PlaylistsDelete,
			},
			{
				Name:      "export",
				Usage:     "Export a playlist to csv, md, txt, json, yaml or m3u",
				ArgsUsage: "<playlist-id>",
				Flags:     exportFlags(),
				Action:    r.PlaylistsExport,
			},
		},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "csv, md, txt, json, yaml or m3u",
			Value:   "m3u",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output path (a directory for md); - writes to stdout",
		},
	}
}

// playCommand plays songs through mpv.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play songs, an album or a playlist through mpv",
		ArgsUsage: "[song-id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "playlist", Aliases: []string{"p"}, Usage: "Play a playlist"},
			&cli.StringFlag{Name: "album", Usage: "Play an album"},
			&cli.BoolFlag{Name: "shuffle", Aliases: []string{"s"}, Usage: "Shuffle the queue"},
			&cli.StringFlag{Name: "repeat", Usage: "off, one or all", Value: "off"},
		},
		Action: r.Play,
	}
}

// historyCommand shows or clears the play history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recently played songs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of entries (0 for all)", Value: 20},
			&cli.BoolFlag{Name: "clear", Usage: "Forget the whole history"},
			jsonFlag(),
		},
		Action: r.History,
	}
}

// verifyCommand checks library files against records.
func verifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check that every song's media and every artwork file exists",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "prune", Usage: "Delete songs whose media file is missing"},
			jsonFlag(),
		},
		Action: r.Verify,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the library and download API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default: from [server] config)"},
			&cli.BoolFlag{Name: "watch", Usage: "Watch the media directory for removed files"},
			&cli.BoolFlag{Name: "prune", Usage: "With --watch, delete songs whose media file is removed"},
		},
		Action: r.Serve,
	}
}

// apiCommand makes direct calls to a running `tunebox serve`.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to a running tunebox API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path from the API and print the response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "POST a JSON body to the API, e.g. /api/downloads or /api/downloads/{id}/pause",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON request body",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}
