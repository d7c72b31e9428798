// Package diskcache opens the on-disk module cache shared by resolvers.
package diskcache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// DirName is the cache directory created under the configured cache folder.
const DirName = ".move-modules-cache"

const (
	cacheMB   = 16
	fileLimit = 16
	namespace = "lazyview/modules/"
)

// Path returns the cache location for the given cache folder.
func Path(cacheFolder string) string {
	return filepath.Join(cacheFolder, DirName)
}

// Open opens (creating if needed) the LevelDB module store under cacheFolder.
func Open(cacheFolder string) (ethdb.KeyValueStore, error) {
	if cacheFolder == "" {
		return nil, fmt.Errorf("cache folder is empty")
	}
	dir := Path(cacheFolder)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache folder: %w", err)
	}
	db, err := leveldb.New(dir, cacheMB, fileLimit, namespace, false)
	if err != nil {
		return nil, fmt.Errorf("open module cache %s: %w", dir, err)
	}
	return db, nil
}

// OpenMemory returns a process-local store, used when no cache folder is
// configured.
func OpenMemory() ethdb.KeyValueStore {
	return memorydb.New()
}
