// Package storage provides the durable key-value slot the session manager
// persists into. The backend (SQLite database, plain files or process
// memory) is chosen once, when the store is opened.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/partfinder/partfinder/internal/filex"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is a small durable key-value store.
//
// Get returns (nil, nil) when the key is absent. Delete of an absent key is
// not an error. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open constructs the store for backend. path is the database file for
// BackendSQLite, the directory for BackendFile, and ignored for BackendMemory.
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case BackendSQLite, "":
		if isFilePath(path) {
			if err := filex.EnsureParentDir(path); err != nil {
				return nil, fmt.Errorf("sqlite store: %w", err)
			}
		}
		return OpenSQLite(ctx, path)
	case BackendFile:
		return NewFileStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// isFilePath reports whether a SQLite DSN names a plain file, as opposed to
// an in-memory database or a "file:" URI.
func isFilePath(dsn string) bool {
	return dsn != "" && !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:")
}
