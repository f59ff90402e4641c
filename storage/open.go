package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported backend names accepted by Open.
const (
	BackendLevelDB = "leveldb"
	BackendPebble  = "pebble"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Open returns the database backend named by backend, rooted under dir.
// An empty backend selects LevelDB.
func Open(backend, dir string) (Database, error) {
	name := strings.ToLower(strings.TrimSpace(backend))
	if name == "" {
		name = BackendLevelDB
	}
	if name == BackendMemory {
		return NewMemDB(), nil
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: data directory required for %s backend", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	var (
		db  Database
		err error
	)
	switch name {
	case BackendLevelDB:
		db, err = NewLevelDB(filepath.Join(dir, "leveldb"))
	case BackendPebble:
		db, err = NewPebbleDB(filepath.Join(dir, "pebble"))
	case BackendBolt:
		db, err = NewBoltDB(filepath.Join(dir, "state.bolt"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", name, err)
	}
	return db, nil
}
