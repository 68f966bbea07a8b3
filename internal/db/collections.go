package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Collection is one whole-document row of the collections table.
type Collection struct {
	Name      string
	Version   int64
	Body      []byte
	UpdatedAt time.Time
}

const getCollection = `SELECT name, version, body, updated_at FROM collections WHERE name = ?`

// GetCollection returns sql.ErrNoRows when the collection was never written.
func (db *DB) GetCollection(ctx context.Context, name string) (Collection, error) {
	var c Collection
	err := db.QueryRowContext(ctx, getCollection, name).Scan(&c.Name, &c.Version, &c.Body, &c.UpdatedAt)
	return c, err
}

const insertCollection = `INSERT INTO collections (name, version, body, updated_at)
VALUES (?, 1, ?, ?)
ON CONFLICT (name) DO NOTHING`

// InsertCollection creates the first version of a collection. It reports false
// when another writer created the row first.
func (db *DB) InsertCollection(ctx context.Context, name string, body []byte) (bool, error) {
	result, err := db.ExecContext(ctx, insertCollection, name, body, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert collection %s: %w", name, err)
	}
	return affectedOne(result)
}

const updateCollection = `UPDATE collections
SET body = ?, version = version + 1, updated_at = ?
WHERE name = ? AND version = ?`

// UpdateCollection replaces the body only when the stored version still equals
// expectedVersion. It reports false when the version moved on.
func (db *DB) UpdateCollection(ctx context.Context, name string, expectedVersion int64, body []byte) (bool, error) {
	result, err := db.ExecContext(ctx, updateCollection, body, time.Now().UTC(), name, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update collection %s: %w", name, err)
	}
	return affectedOne(result)
}

func affectedOne(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// IsNotFound reports whether err means the collection row is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
