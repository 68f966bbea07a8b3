// Package store persists whole JSON collections behind a compare-and-swap
// version token.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/codr1/folio/internal/config"
	"github.com/codr1/folio/internal/db"
)

// ErrVersionConflict is returned by CompareAndSwap when the collection changed
// after the caller loaded it.
var ErrVersionConflict = errors.New("collection version conflict")

// Snapshot is one read of a collection. An empty Version means the collection
// has never been written.
type Snapshot struct {
	Data    []byte
	Version string
}

// Store is the persistence collaborator of the availability engine.
type Store interface {
	// Load returns the current collection, or an empty Snapshot when absent.
	Load(ctx context.Context, collection string) (Snapshot, error)
	// CompareAndSwap replaces the collection when its version still equals
	// version and returns the new version token.
	CompareAndSwap(ctx context.Context, collection, version string, data []byte) (string, error)
	Close() error
}

// Open builds the store selected by cfg.Database.Driver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		database, err := db.NewFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return NewSQLite(database), nil
	case "file":
		return NewFile(cfg.Database.DataDir)
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:      cfg.Database.URL,
			Password:  cfg.Database.AuthToken,
			DB:        cfg.Database.DB,
			KeyPrefix: cfg.Database.KeyPrefix,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
