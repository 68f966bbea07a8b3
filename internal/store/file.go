package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File keeps one JSON document per collection under dir, e.g.
// dir/availability.json. The version token is the sha256 of the file bytes.
type File struct {
	dir string
	mu  sync.Mutex
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(collection string) string {
	return filepath.Join(f.dir, collection+".json")
}

func (f *File) Load(_ context.Context, collection string) (Snapshot, error) {
	return f.read(collection)
}

func (f *File) read(collection string) (Snapshot, error) {
	data, err := os.ReadFile(f.path(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read collection %s: %w", collection, err)
	}
	return Snapshot{Data: data, Version: contentVersion(data)}, nil
}

func (f *File) CompareAndSwap(_ context.Context, collection, version string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read(collection)
	if err != nil {
		return "", err
	}
	if current.Version != version {
		return "", ErrVersionConflict
	}

	tmp, err := os.CreateTemp(f.dir, collection+"-*.json.tmp")
	if err != nil {
		return "", fmt.Errorf("write collection %s: %w", collection, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write collection %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write collection %s: %w", collection, err)
	}
	if err := os.Rename(tmpName, f.path(collection)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("replace collection %s: %w", collection, err)
	}
	return contentVersion(data), nil
}

func (f *File) Close() error { return nil }

func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
