package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/media"
	"github.com/desertthunder/tunebox/internal/player"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, download manager and history store are opened on first use so commands that
// don't need them (search, setup config) work without a library.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader

	search   services.SearchService
	images   services.ImageService
	resolver services.Resolver
	extract  tasks.Extractor

	db      *sql.DB
	library *library.Service
	manager *tasks.Manager
	history *player.HistoryStore
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Search     services.SearchService
	Images     services.ImageService
	Resolver   services.Resolver
	Extractor  tasks.Extractor
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		search:     opts.Search,
		images:     opts.Images,
		resolver:   opts.Resolver,
		extract:    opts.Extractor,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, searchCommand, downloadCommand, songsCommand, albumsCommand, artistsCommand,
		playlistsCommand, playCommand, historyCommand, verifyCommand, serveCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it opens afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// loadConfig reads the config file when it exists and keeps the defaults otherwise.
func (r *Runner) loadConfig(path string) error {
	r.configPath = path
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	r.config = config
	return nil
}

// openLibrary opens the database, applies pending migrations and creates the library directories.
func (r *Runner) openLibrary() (*library.Service, error) {
	if r.library != nil {
		return r.library, nil
	}

	if r.db == nil {
		db, err := shared.NewDatabase(shared.ExpandHome(r.config.Database.Path))
		if err != nil {
			return nil, err
		}
		if r.config.Database.Path != ":memory:" {
			shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		}
		r.db = db
	}
	if err := shared.RunMigrations(r.db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	files := library.NewFiles(r.config.Library)
	if err := files.EnsureDirs(); err != nil {
		return nil, err
	}

	r.library = library.NewService(r.db, files, r.config.Artwork, r.logger)
	return r.library, nil
}

// openManager builds the download manager over the library.
func (r *Runner) openManager() (*tasks.Manager, error) {
	if r.manager != nil {
		return r.manager, nil
	}

	lib, err := r.openLibrary()
	if err != nil {
		return nil, err
	}

	resolver := r.resolver
	if resolver == nil {
		resolver = services.NewStreamResolver(r.httpClient, r.config.Library.AudioFormat)
	}
	extractor := r.extract
	if extractor == nil {
		extractor = media.NewExtractor(r.config.Download.FFmpegPath, r.config.Download.FFprobePath, r.logger)
	}

	// the search service only adds artist names and artwork, so downloads work without an API key
	search, err := r.searchService()
	if err != nil {
		r.logger.Debug("downloading without search metadata", "error", err)
	}

	r.manager = tasks.NewManager(tasks.Deps{
		Library:   lib,
		Resolver:  resolver,
		Search:    search,
		Extractor: extractor,
		Fetcher:   services.NewFetcher("", r.httpClient),
		Client:    r.httpClient,
		Logger:    r.logger,
	}, r.config)
	return r.manager, nil
}

func (r *Runner) openHistory() (*player.HistoryStore, error) {
	if r.history != nil {
		return r.history, nil
	}
	history, err := player.NewHistoryStore(shared.ExpandHome(r.config.History.Path))
	if err != nil {
		return nil, err
	}
	r.history = history
	return history, nil
}

func (r *Runner) searchService() (services.SearchService, error) {
	if r.search != nil {
		return r.search, nil
	}
	yt := r.config.Credentials.YouTube
	if !hasCredential(yt.APIKey) {
		return nil, fmt.Errorf("%w: credentials.youtube.api_key is not set", shared.ErrMissingCredentials)
	}
	r.search = services.NewYouTubeService(yt.BaseURL, yt.APIKey, r.config.Download.RateLimit)
	return r.search, nil
}

func (r *Runner) imageService() (services.ImageService, error) {
	if r.images != nil {
		return r.images, nil
	}
	us := r.config.Credentials.Unsplash
	if !hasCredential(us.AccessKey) {
		return nil, fmt.Errorf("%w: credentials.unsplash.access_key is not set", shared.ErrMissingCredentials)
	}
	r.images = services.NewUnsplashService(us.BaseURL, us.AccessKey)
	return r.images, nil
}

// hasCredential rejects empty keys and the placeholders from the example config.
func hasCredential(key string) bool {
	return key != "" && key != "your_youtube_api_key" && key != "your_unsplash_access_key"
}

// Close releases everything the runner opened.
func (r *Runner) Close() error {
	var errs []error
	if r.manager != nil {
		r.manager.Close()
		r.manager = nil
	}
	if r.history != nil {
		errs = append(errs, r.history.Close())
		r.history = nil
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
		r.library = nil
	}
	return errors.Join(errs...)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// writeTable prints tab-separated rows under a header, aligned in columns.
func (r *Runner) writeTable(header string, rows []string) error {
	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, row)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
