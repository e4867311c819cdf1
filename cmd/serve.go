package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/server"
)

// watchDelay batches media directory removals before they are checked.
const watchDelay = 2 * time.Second

// Serve runs the HTTP API until the command is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}
	manager, err := r.openManager()
	if err != nil {
		return err
	}

	if cmd.Bool("watch") {
		watcher, err := library.NewWatcher(lib, cmd.Bool("prune"), watchDelay, r.logger)
		if err != nil {
			return fmt.Errorf("failed to watch media directory: %w", err)
		}
		defer watcher.Close()
		r.logger.Info("watching media directory", "dir", lib.Files().MediaDir(), "prune", cmd.Bool("prune"))
	}

	router := server.NewAPIRouter(
		server.NewLibraryHandler(lib, r.logger),
		server.NewDownloadHandler(manager, r.logger),
		server.Logging(r.logger),
		server.Recover(r.logger),
	)

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	return server.Run(ctx, addr, router, r.logger)
}

// Verify reports songs and artwork whose files are missing, and with --prune deletes songs without media.
func (r *Runner) Verify(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	problems, err := lib.Verify()
	if err != nil {
		return err
	}

	pruned := 0
	if cmd.Bool("prune") {
		if pruned, err = lib.PruneMissing(); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		if problems == nil {
			problems = []library.Problem{}
		}
		return r.writeJSON(map[string]any{"problems": problems, "pruned": pruned}, true)
	}

	if len(problems) == 0 {
		return r.writePlain("✓ Library is consistent\n")
	}
	for _, p := range problems {
		r.writePlain("⚠ %s\n", p)
	}
	r.writePlain("\n%d problems found\n", len(problems))
	if pruned > 0 {
		r.writePlain("✓ Pruned %d songs with missing media\n", pruned)
	}
	return nil
}
