// Package migrations embeds the linked_accounts schema and hands the
// per-dialect filesystems to whichever migration runner the host
// application uses.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

//go:embed sql/*.sql sql/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree, postgres
// files at the root and sqlite alternatives under sql/sqlite.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc adapts the host's migration runner.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

// Filesystems returns one spec per supported dialect, each rooted at
// its own migration directory.
func Filesystems() ([]FilesystemSpec, error) {
	base, err := fs.Sub(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve base filesystem: %w", err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	filesystems := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: "sql", FS: base},
		{Dialect: DialectSQLite, Path: "sql/sqlite", FS: sqliteFS},
	}
	for _, fsys := range filesystems {
		matches, globErr := fs.Glob(fsys.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s %s: %w", fsys.Dialect, fsys.Path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: no migrations found for dialect %s", fsys.Dialect)
		}
	}
	return filesystems, nil
}

// Register feeds every dialect filesystem to the supplied runner hook.
func Register(ctx context.Context, register RegisterFunc, sourceLabel string) error {
	if register == nil {
		return fmt.Errorf("migrations: register func is required")
	}
	sourceLabel = strings.TrimSpace(sourceLabel)
	if sourceLabel == "" {
		sourceLabel = "social-connect"
	}
	filesystems, err := Filesystems()
	if err != nil {
		return err
	}
	for _, fsys := range filesystems {
		if err := register(ctx, fsys.Dialect, sourceLabel, fsys.FS); err != nil {
			return fmt.Errorf("migrations: register %s: %w", fsys.Dialect, err)
		}
	}
	return nil
}
