package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/shared"
)

// SetupDatabase initializes the database and runs migrations.
//
// Also creates the library directories so the first download has somewhere to go.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Database.Path
	r.logger.Info("initializing database", "path", path)

	if r.db == nil {
		db, err := shared.NewDatabase(shared.ExpandHome(path))
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		if path != ":memory:" {
			shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		}
		r.db = db
	}

	switch {
	case cmd.Bool("status"):
		return r.migrationStatus()
	case cmd.Bool("rollback"):
		if err := shared.RollbackMigration(r.db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.writePlain("✓ Rolled back the latest migration\n")
		return nil
	}

	r.logger.Info("running database migrations")
	if _, err := r.openLibrary(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("✓ Database ready: %s\n", path)
	r.writePlain("  Media:  %s\n", r.library.Files().MediaDir())
	r.writePlain("  Images: %s\n", r.library.Files().ImagesDir())
	return nil
}

func (r *Runner) migrationStatus() error {
	states, err := shared.MigrationStatus(r.db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	rows := make([]string, 0, len(states))
	for _, s := range states {
		applied := "pending"
		if s.Applied {
			applied = "applied"
		}
		rows = append(rows, fmt.Sprintf("%d\t%s\t%s", s.Version, s.Name, applied))
	}
	return r.writeTable("VERSION\tNAME\tSTATUS", rows)
}

// SetupConfig writes the example configuration to disk.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.youtube.api_key to search YouTube\n")
	r.writePlain("2. Run 'tunebox setup database' to create the library\n")
	return nil
}
