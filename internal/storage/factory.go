package storage

import (
	"errors"
	"fmt"
	"log/slog"
)

var errNotInitialized = errors.New("store is not initialized")

// NewStore builds an uninitialized store. path is the sqlite database file or
// the badger directory; memory ignores it. logger only feeds badger.
func NewStore(kind, path string, logger *slog.Logger) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	case "badger":
		return NewBadgerStore(path, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// DefaultStoreKind is the persistent backend this build prefers.
func DefaultStoreKind() string {
	return defaultStoreKind
}

// DefaultStorePath is where kind keeps its data unless told otherwise.
func DefaultStorePath(kind string) string {
	switch kind {
	case "sqlite":
		return "revolver.db"
	case "badger":
		return "revolver.badger"
	default:
		return ""
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
