package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	tu "github.com/desertthunder/tunebox/internal/testing"
)

// newTestRunner creates a Runner over an in-memory database and temporary library and history paths
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = ":memory:"
	config.Library.Dir = t.TempDir()
	config.History.Path = filepath.Join(t.TempDir(), "history.db")

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Output: output,
		Input:  strings.NewReader(""),
	})
	t.Cleanup(func() { runner.Close() })
	return runner, output
}

func runCommand(r *Runner, args ...string) error {
	app := &cli.Command{Name: "tunebox", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"tunebox"}, args...))
}

// addSong stores a song with its media file on disk
func addSong(t *testing.T, r *Runner, title, videoID string) *models.Song {
	t.Helper()

	lib, err := r.openLibrary()
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}

	song := models.NewSong(0, title, videoID)
	song.MediaFile = videoID + ".m4a"
	song.Duration = 200
	tu.MustWriteFile(t, lib.Files().MediaPath(song.MediaFile), []byte("audio"))

	if err := lib.Songs().Create(song); err != nil {
		t.Fatalf("failed to create song: %v", err)
	}
	return song
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 120, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			search := &tu.MockSearchService{}
			resolver := &tu.MockResolver{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Search:     search,
				Resolver:   resolver,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.search != search {
				t.Error("expected search to be set")
			}
			if runner.resolver != resolver {
				t.Error("expected resolver to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to stdin")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected default HTTP client")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner, _ := newTestRunner(t)

		names := map[string]bool{}
		for _, cmd := range runner.register() {
			names[cmd.Name] = true
		}
		for _, want := range []string{
			"setup", "search", "download", "songs", "albums", "artists",
			"playlists", "play", "history", "verify", "serve", "api",
		} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("pretty", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"songs": 2}, true); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if !strings.Contains(output.String(), "  \"songs\": 2") {
				t.Errorf("expected indented JSON, got %s", output.String())
			}
		})

		t.Run("compact", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"songs": 2}, false); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if got := strings.TrimSpace(output.String()); got != `{"songs":2}` {
				t.Errorf("expected compact JSON, got %s", got)
			}
		})

		t.Run("unmarshalable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), true); err == nil {
				t.Error("expected error for a channel")
			}
		})

		t.Run("write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON(map[string]int{"songs": 2}, true); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats output", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("%d songs\n", 3); err != nil {
				t.Fatalf("writePlain failed: %v", err)
			}
			if output.String() != "3 songs\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlain("hello"); err == nil {
				t.Error("expected write error")
			}
			if err := runner.writePlainln("hello"); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("writeTable", func(t *testing.T) {
		t.Run("aligns columns", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeTable("ID\tTITLE", []string{"1\tFirst", "22\tSecond"}); err != nil {
				t.Fatalf("writeTable failed: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(output.String()), "\n")
			if len(lines) != 3 {
				t.Fatalf("expected 3 lines, got %d: %q", len(lines), output.String())
			}
			if strings.Index(lines[1], "First") != strings.Index(lines[2], "Second") {
				t.Errorf("columns not aligned:\n%s", output.String())
			}
		})

		t.Run("write failure", func(t *testing.T) {
			w := tu.NewLimitedWriter(0, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})
			if err := runner.writeTable("ID", []string{"1"}); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("Close", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		if _, err := runner.openLibrary(); err != nil {
			t.Fatalf("openLibrary failed: %v", err)
		}
		if _, err := runner.openHistory(); err != nil {
			t.Fatalf("openHistory failed: %v", err)
		}

		if err := runner.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if runner.db != nil || runner.history != nil || runner.library != nil {
			t.Error("expected Close to release everything")
		}
		if err := runner.Close(); err != nil {
			t.Errorf("second Close failed: %v", err)
		}
	})
}

func TestCredentials(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"", false},
		{"your_youtube_api_key", false},
		{"your_unsplash_access_key", false},
		{"AIzaRealKey", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := hasCredential(tt.key); got != tt.want {
				t.Errorf("hasCredential(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	t.Run("search without a key", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		if _, err := runner.searchService(); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if _, err := runner.imageService(); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestVideoIDs(t *testing.T) {
	t.Run("accepts ids and URLs and drops duplicates", func(t *testing.T) {
		ids, err := videoIDs([]string{
			"dQw4w9WgXcQ",
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			"https://youtu.be/9bZkp7q19f0",
		})
		if err != nil {
			t.Fatalf("videoIDs failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "dQw4w9WgXcQ" || ids[1] != "9bZkp7q19f0" {
			t.Errorf("unexpected ids %v", ids)
		}
	})

	t.Run("no arguments", func(t *testing.T) {
		if _, err := videoIDs(nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := videoIDs([]string{"abc"}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("database", func(t *testing.T) {
		runner, output := newTestRunner(t)

		if err := runCommand(runner, "setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		if !strings.Contains(output.String(), "Database ready") {
			t.Errorf("unexpected output %s", output.String())
		}
		tu.AssertDirExists(t, runner.library.Files().MediaDir())
		tu.AssertDirExists(t, runner.library.Files().ImagesDir())

		output.Reset()
		if err := runCommand(runner, "setup", "database", "--status"); err != nil {
			t.Fatalf("setup database --status failed: %v", err)
		}
		if !strings.Contains(output.String(), "applied") || strings.Contains(output.String(), "pending") {
			t.Errorf("expected every migration applied, got:\n%s", output.String())
		}
	})

	t.Run("config", func(t *testing.T) {
		runner, output := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "tunebox.toml")

		if err := runCommand(runner, "setup", "config", "--output", path); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "Next steps") {
			t.Errorf("expected next steps, got %s", output.String())
		}

		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("written config does not load: %v", err)
		}
	})
}

func TestSearchCommands(t *testing.T) {
	runner, output := newTestRunner(t)
	runner.search = &tu.MockSearchService{Videos: map[string]models.Video{
		"dQw4w9WgXcQ": {ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up", ChannelTitle: "Rick Astley", Duration: 213},
	}}

	t.Run("videos", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "search", "videos", "rick", "astley"); err != nil {
			t.Fatalf("search videos failed: %v", err)
		}
		for _, want := range []string{"dQw4w9WgXcQ", "3:33", "Rick Astley", "Never Gonna Give You Up"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("output missing %q:\n%s", want, output.String())
			}
		}
	})

	t.Run("missing query", func(t *testing.T) {
		if err := runCommand(runner, "search", "videos"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("images without credentials", func(t *testing.T) {
		if err := runCommand(runner, "search", "images", "sunset"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestSongCommands(t *testing.T) {
	runner, output := newTestRunner(t)
	first := addSong(t, runner, "First Song", "aaaaaaaaaaa")
	second := addSong(t, runner, "Second Song", "bbbbbbbbbbb")

	t.Run("list", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "songs", "list"); err != nil {
			t.Fatalf("songs list failed: %v", err)
		}
		for _, want := range []string{"ID", "TITLE", "First Song", "Second Song", "3:20"} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("output missing %q:\n%s", want, output.String())
			}
		}
	})

	t.Run("list with query", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "songs", "list", "--query", "second", "--json"); err != nil {
			t.Fatalf("songs list failed: %v", err)
		}
		if strings.Contains(output.String(), "First Song") || !strings.Contains(output.String(), "Second Song") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("show", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "songs", "show", first.ID()); err != nil {
			t.Fatalf("songs show failed: %v", err)
		}
		if !strings.Contains(output.String(), "watch?v=aaaaaaaaaaa") {
			t.Errorf("expected video URL, got:\n%s", output.String())
		}
	})

	t.Run("show unknown", func(t *testing.T) {
		if err := runCommand(runner, "songs", "show", "nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("edit", func(t *testing.T) {
		if err := runCommand(runner, "songs", "edit", "--title", "Renamed", first.ID()); err != nil {
			t.Fatalf("songs edit failed: %v", err)
		}
		song, err := runner.library.Songs().Get(first.ID())
		if err != nil {
			t.Fatal(err)
		}
		if song.Title != "Renamed" {
			t.Errorf("expected Renamed, got %s", song.Title)
		}
	})

	t.Run("edit artwork from file", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "cover.png")
		tu.MustWriteFile(t, src, pngBytes(t))

		if err := runCommand(runner, "songs", "edit", "--artwork", src, second.ID()); err != nil {
			t.Fatalf("songs edit --artwork failed: %v", err)
		}
		song, err := runner.library.Songs().Get(second.ID())
		if err != nil {
			t.Fatal(err)
		}
		if len(song.Thumbnail.Files()) != 3 {
			t.Errorf("expected three artwork tiers, got %v", song.Thumbnail)
		}
		for _, path := range song.Thumbnail.Paths(runner.library.Files().ImagesDir()) {
			tu.AssertFileExists(t, path)
		}
	})

	t.Run("edit without changes", func(t *testing.T) {
		if err := runCommand(runner, "songs", "edit", first.ID()); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		media := runner.library.Files().MediaPath(first.MediaFile)
		if err := runCommand(runner, "songs", "delete", first.ID()); err != nil {
			t.Fatalf("songs delete failed: %v", err)
		}
		if _, err := runner.library.Songs().Get(first.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected song to be gone, got %v", err)
		}
		tu.AssertFileNotExists(t, media)
	})
}

func TestAlbumAndArtistCommands(t *testing.T) {
	runner, output := newTestRunner(t)
	first := addSong(t, runner, "Intro", "ccccccccccc")
	second := addSong(t, runner, "Outro", "ddddddddddd")

	if err := runCommand(runner, "albums", "create", "Debut", first.ID()); err != nil {
		t.Fatalf("albums create failed: %v", err)
	}

	albums, err := runner.library.Albums().List(nil)
	if err != nil || len(albums) != 1 {
		t.Fatalf("expected one album, got %d (%v)", len(albums), err)
	}
	album := albums[0]

	t.Run("add", func(t *testing.T) {
		if err := runCommand(runner, "albums", "add", album.ID(), second.ID()); err != nil {
			t.Fatalf("albums add failed: %v", err)
		}
		songs, err := runner.library.Songs().List(map[string]any{"album_id": album.ID()})
		if err != nil {
			t.Fatal(err)
		}
		if len(songs) != 2 {
			t.Errorf("expected 2 songs in album, got %d", len(songs))
		}
	})

	t.Run("add needs songs", func(t *testing.T) {
		if err := runCommand(runner, "albums", "add", album.ID()); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "albums", "list"); err != nil {
			t.Fatalf("albums list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Debut") {
			t.Errorf("expected album in output:\n%s", output.String())
		}
	})

	t.Run("artists", func(t *testing.T) {
		artist, _, err := runner.library.Artists().FindOrCreate("UCchannel", "Band", models.Thumbnail{})
		if err != nil {
			t.Fatal(err)
		}

		output.Reset()
		if err := runCommand(runner, "artists", "list"); err != nil {
			t.Fatalf("artists list failed: %v", err)
		}
		if !strings.Contains(output.String(), "UCchannel") || !strings.Contains(output.String(), "Band") {
			t.Errorf("unexpected output:\n%s", output.String())
		}

		if err := runCommand(runner, "artists", "delete", artist.ID()); err != nil {
			t.Fatalf("artists delete failed: %v", err)
		}
		if _, err := runner.library.Artists().Get(artist.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected artist to be gone, got %v", err)
		}
	})

	t.Run("delete album keeps songs", func(t *testing.T) {
		if err := runCommand(runner, "albums", "delete", album.ID()); err != nil {
			t.Fatalf("albums delete failed: %v", err)
		}
		if _, err := runner.library.Songs().Get(first.ID()); err != nil {
			t.Errorf("expected song to survive album deletion: %v", err)
		}
	})
}

func TestPlaylistCommands(t *testing.T) {
	runner, output := newTestRunner(t)
	a := addSong(t, runner, "Alpha", "eeeeeeeeeee")
	b := addSong(t, runner, "Beta", "fffffffffff")

	if err := runCommand(runner, "playlists", "create", "--description", "for testing", "Mix", a.ID()); err != nil {
		t.Fatalf("playlists create failed: %v", err)
	}
	playlists, err := runner.library.Playlists().List(nil)
	if err != nil || len(playlists) != 1 {
		t.Fatalf("expected one playlist, got %d (%v)", len(playlists), err)
	}
	id := playlists[0].ID()

	songIDs := func(t *testing.T) []string {
		t.Helper()
		songs, err := runner.library.Playlists().Songs(id)
		if err != nil {
			t.Fatal(err)
		}
		ids := make([]string, 0, len(songs))
		for _, s := range songs {
			ids = append(ids, s.ID())
		}
		return ids
	}

	t.Run("append", func(t *testing.T) {
		if err := runCommand(runner, "playlists", "edit", "--append", id, b.ID(), a.ID()); err != nil {
			t.Fatalf("playlists edit --append failed: %v", err)
		}
		got := songIDs(t)
		want := []string{a.ID(), b.ID(), a.ID()}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("list", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "playlists", "list"); err != nil {
			t.Fatalf("playlists list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Mix") || !strings.Contains(output.String(), "3") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("export to stdout", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "playlists", "export", "--output=-", id); err != nil {
			t.Fatalf("playlists export failed: %v", err)
		}
		out := output.String()
		if !strings.HasPrefix(out, "#EXTM3U\n#PLAYLIST:Mix\n") {
			t.Errorf("unexpected M3U:\n%s", out)
		}
		if strings.Count(out, "#EXTINF:200,") != 3 {
			t.Errorf("expected three entries:\n%s", out)
		}
		if !strings.Contains(out, runner.library.Files().MediaPath(a.MediaFile)) {
			t.Errorf("expected media path in M3U:\n%s", out)
		}
	})

	t.Run("export to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mix.csv")
		if err := runCommand(runner, "playlists", "export", "--format", "csv", "--output", path, id); err != nil {
			t.Fatalf("playlists export failed: %v", err)
		}
		if !strings.Contains(tu.MustReadFile(t, path), "Beta") {
			t.Error("expected CSV to list the songs")
		}
	})

	t.Run("rename and clear", func(t *testing.T) {
		if err := runCommand(runner, "playlists", "edit", "--name", "Empty", "--clear", id); err != nil {
			t.Fatalf("playlists edit --clear failed: %v", err)
		}
		if got := songIDs(t); len(got) != 0 {
			t.Errorf("expected empty playlist, got %v", got)
		}
		playlist, err := runner.library.Playlists().Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if playlist.Name != "Empty" || playlist.Description != "for testing" {
			t.Errorf("unexpected playlist %s / %s", playlist.Name, playlist.Description)
		}
	})

	t.Run("clear with songs", func(t *testing.T) {
		if err := runCommand(runner, "playlists", "edit", "--clear", id, a.ID()); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("unknown song", func(t *testing.T) {
		if err := runCommand(runner, "playlists", "edit", id, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := runCommand(runner, "playlists", "delete", id); err != nil {
			t.Fatalf("playlists delete failed: %v", err)
		}
		if _, err := runner.library.Songs().Get(a.ID()); err != nil {
			t.Errorf("expected songs to survive: %v", err)
		}
	})
}

func TestQueueSongs(t *testing.T) {
	runner, _ := newTestRunner(t)
	a := addSong(t, runner, "One", "ggggggggggg")
	b := addSong(t, runner, "Two", "hhhhhhhhhhh")
	lib := runner.library

	playlist, err := lib.CreatePlaylist("Queue", "", []string{b.ID(), a.ID()})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		playlist string
		songs    []string
		want     []string
		wantErr  error
	}{
		{name: "whole library", want: []string{a.ID(), b.ID()}},
		{name: "playlist order", playlist: playlist.ID(), want: []string{b.ID(), a.ID()}},
		{name: "playlist then songs", playlist: playlist.ID(), songs: []string{b.ID()}, want: []string{b.ID(), a.ID(), b.ID()}},
		{name: "unknown playlist", playlist: "nope", wantErr: shared.ErrNotFound},
		{name: "unknown song", songs: []string{"nope"}, wantErr: shared.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			songs, err := queueSongs(lib, tt.playlist, "", tt.songs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("queueSongs failed: %v", err)
			}
			got := make([]string, 0, len(songs))
			for _, s := range songs {
				got = append(got, s.ID())
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestHistoryCommand(t *testing.T) {
	runner, output := newTestRunner(t)
	song := addSong(t, runner, "Played", "iiiiiiiiiii")

	if err := runCommand(runner, "history"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(output.String(), "Nothing played yet") {
		t.Errorf("unexpected output %s", output.String())
	}

	history, err := runner.openHistory()
	if err != nil {
		t.Fatal(err)
	}
	if err := history.Add(song); err != nil {
		t.Fatal(err)
	}
	if err := history.UpdatePosition(song.ID(), 75); err != nil {
		t.Fatal(err)
	}

	output.Reset()
	if err := runCommand(runner, "history"); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(output.String(), "Played") || !strings.Contains(output.String(), "1:15") {
		t.Errorf("unexpected output:\n%s", output.String())
	}

	t.Run("deleting a song forgets it", func(t *testing.T) {
		if err := runCommand(runner, "songs", "delete", song.ID()); err != nil {
			t.Fatal(err)
		}
		entries, err := history.Recent(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty history, got %v", entries)
		}
	})

	t.Run("clear", func(t *testing.T) {
		if err := history.Add(addSong(t, runner, "Again", "jjjjjjjjjjj")); err != nil {
			t.Fatal(err)
		}
		if err := runCommand(runner, "history", "--clear"); err != nil {
			t.Fatalf("history --clear failed: %v", err)
		}
		entries, err := history.Recent(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty history, got %v", entries)
		}
	})
}

func TestPlayControls(t *testing.T) {
	runner, output := newTestRunner(t)

	if done := runner.control(nil, "q"); !done {
		t.Error("expected q to stop playback")
	}
	if done := runner.control(nil, ""); done {
		t.Error("expected an empty line to be ignored")
	}
	if done := runner.control(nil, "?"); done || !strings.Contains(output.String(), "Controls:") {
		t.Errorf("expected help for an unknown command, got %q", output.String())
	}

	t.Run("empty library", func(t *testing.T) {
		if err := runCommand(runner, "play"); !errors.Is(err, shared.ErrQueueEmpty) {
			t.Errorf("expected ErrQueueEmpty, got %v", err)
		}
	})

	t.Run("bad repeat mode", func(t *testing.T) {
		if err := runCommand(runner, "play", "--repeat", "sometimes"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestVerifyCommand(t *testing.T) {
	runner, output := newTestRunner(t)
	kept := addSong(t, runner, "Kept", "kkkkkkkkkkk")
	lost := addSong(t, runner, "Lost", "lllllllllll")

	if err := os.Remove(runner.library.Files().MediaPath(lost.MediaFile)); err != nil {
		t.Fatal(err)
	}

	if err := runCommand(runner, "verify"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(output.String(), "missing media") || !strings.Contains(output.String(), "1 problems found") {
		t.Errorf("unexpected output:\n%s", output.String())
	}

	output.Reset()
	if err := runCommand(runner, "verify", "--prune", "--json"); err != nil {
		t.Fatalf("verify --prune failed: %v", err)
	}
	if !strings.Contains(output.String(), `"pruned": 1`) {
		t.Errorf("expected one pruned song:\n%s", output.String())
	}
	if _, err := runner.library.Songs().Get(lost.ID()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected lost song to be pruned, got %v", err)
	}
	if _, err := runner.library.Songs().Get(kept.ID()); err != nil {
		t.Errorf("expected kept song to remain: %v", err)
	}

	output.Reset()
	if err := runCommand(runner, "verify"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(output.String(), "consistent") {
		t.Errorf("expected a consistent library:\n%s", output.String())
	}
}

func TestAPICommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/health":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/downloads":
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"id":"job-1"}`))
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	runner, output := newTestRunner(t)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	runner.config.Server.Host = host
	runner.config.Server.Port, _ = strconv.Atoi(port)

	t.Run("get", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "api", "get", "--json", "/api/health"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if got := strings.TrimSpace(output.String()); got != `{"status":"ok"}` {
			t.Errorf("unexpected output %s", got)
		}
	})

	t.Run("post", func(t *testing.T) {
		output.Reset()
		if err := runCommand(runner, "api", "post", "--data", `{"video_id":"dQw4w9WgXcQ"}`, "/api/downloads"); err != nil {
			t.Fatalf("api post failed: %v", err)
		}
		if !strings.Contains(output.String(), `"id": "job-1"`) {
			t.Errorf("unexpected output %s", output.String())
		}
	})

	t.Run("error status", func(t *testing.T) {
		if err := runCommand(runner, "api", "get", "/api/missing"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("wildcard host uses loopback", func(t *testing.T) {
		r := NewRunner(RunnerOpts{})
		r.config.Server.Host = "0.0.0.0"
		r.config.Server.Port = 3000
		if got := r.apiBaseURL(); got != "http://127.0.0.1:3000" {
			t.Errorf("unexpected base URL %s", got)
		}
	})
}
