package store

import (
	"path/filepath"

	"github.com/roach88/bugzapp/internal/qa"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config selects and locates a storage backend.
type Config struct {
	// Backend is "json" (default) or "sqlite".
	Backend string

	// Dir is the FileStore base directory. Defaults to "qa-storage".
	Dir string

	// SQLitePath is the database file. Defaults to "qa-storage.sqlite".
	SQLitePath string
}

// Open constructs the configured backend.
func Open(cfg Config, opts ...Option) (Storage, error) {
	switch cfg.Backend {
	case "", BackendJSON:
		dir := cfg.Dir
		if dir == "" {
			dir = "qa-storage"
		}
		return NewFileStore(filepath.Clean(dir), opts...), nil
	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "qa-storage.sqlite"
		}
		return OpenSQLite(path, opts...)
	default:
		return nil, qa.NewError(qa.ErrCodeConfiguration, "unknown storage backend %q", cfg.Backend)
	}
}
