package main

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neoexec/storage"
)

// Supported --db values.
const (
	dbMemory  = "memory"
	dbLevelDB = "leveldb"
	dbBoltDB  = "bolt"
)

var errNoDBPath = errors.New("database path is required")

func openStore(kind, path string) (storage.Store, error) {
	switch kind {
	case "", dbMemory:
		return storage.NewMemoryStore(), nil
	case dbLevelDB:
		if path == "" {
			return nil, errNoDBPath
		}
		return storage.NewLevelDBStore(storage.LevelDBOptions{DataDirectoryPath: path})
	case dbBoltDB:
		if path == "" {
			return nil, errNoDBPath
		}
		return storage.NewBoltDBStore(storage.BoltDBOptions{FilePath: path})
	default:
		return nil, fmt.Errorf("unknown database type '%s'", kind)
	}
}
