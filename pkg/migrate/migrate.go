package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

// DefaultDir is where new migration files are written during development.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the embedded set when dir is empty, otherwise reads dir from disk.
func Source(dir string) fs.FS {
	if dir == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

func newProvider(db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		return nil, errors.New("migration source is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Run executes up, down, redo or status against db. Migrations are written
// for Postgres only.
func Run(ctx context.Context, logg *logger.Logger, db *sql.DB, fsys fs.FS, command string) error {
	provider, err := newProvider(db, fsys)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		logResults(ctx, logg, results...)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case "down":
		result, err := provider.Down(ctx)
		logResults(ctx, logg, result)
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case "redo":
		down, err := provider.Down(ctx)
		logResults(ctx, logg, down)
		if err != nil {
			return fmt.Errorf("goose redo (down): %w", err)
		}
		up, err := provider.UpByOne(ctx)
		logResults(ctx, logg, up)
		if err != nil {
			return fmt.Errorf("goose redo (up): %w", err)
		}
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, st := range statuses {
			if logg == nil || st == nil || st.Source == nil {
				continue
			}
			logg.Info(logg.WithFields(ctx, map[string]any{
				"version":    st.Source.Version,
				"file":       st.Source.Path,
				"state":      string(st.State),
				"applied_at": st.AppliedAt,
			}), "migration.status")
		}
	default:
		return fmt.Errorf("unsupported goose command %q", command)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until targetVersion is current.
func MigrateToVersion(ctx context.Context, logg *logger.Logger, db *sql.DB, fsys fs.FS, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	provider, err := newProvider(db, fsys)
	if err != nil {
		return err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		results, err := provider.UpTo(ctx, target)
		logResults(ctx, logg, results...)
		if err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		results, err := provider.DownTo(ctx, target)
		logResults(ctx, logg, results...)
		if err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

func logResults(ctx context.Context, logg *logger.Logger, results ...*goose.MigrationResult) {
	if logg == nil {
		return
	}
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		entry := logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			logg.Error(entry, "migration.failed", res.Error)
			continue
		}
		logg.Info(entry, "migration.applied")
	}
}
