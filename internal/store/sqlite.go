package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/codr1/folio/internal/db"
)

// SQLite keeps each collection as one versioned row.
type SQLite struct {
	db *db.DB
}

func NewSQLite(database *db.DB) *SQLite {
	return &SQLite{db: database}
}

func (s *SQLite) Load(ctx context.Context, collection string) (Snapshot, error) {
	row, err := s.db.GetCollection(ctx, collection)
	if err != nil {
		if db.IsNotFound(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("load collection %s: %w", collection, err)
	}
	return Snapshot{Data: row.Body, Version: strconv.FormatInt(row.Version, 10)}, nil
}

func (s *SQLite) CompareAndSwap(ctx context.Context, collection, version string, data []byte) (string, error) {
	if version == "" {
		ok, err := s.db.InsertCollection(ctx, collection, data)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrVersionConflict
		}
		return "1", nil
	}

	expected, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid version token %q: %w", version, err)
	}
	ok, err := s.db.UpdateCollection(ctx, collection, expected, data)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrVersionConflict
	}
	return strconv.FormatInt(expected+1, 10), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
