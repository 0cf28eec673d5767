// Package diagram renders diagram definitions to paired light/dark output
// and caches the results by content hash.
package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Hash is the cache key of a definition: the first 16 hex characters of the
// SHA-256 digest of the trimmed text.
func Hash(definition string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(definition)))
	return hex.EncodeToString(sum[:])[:16]
}

// Entry is the rendered output of one definition.
type Entry struct {
	LightOutput string `json:"lightOutput"`
	DarkOutput  string `json:"darkOutput"`
}

// Cache stores one JSON file per hash in a directory and mirrors entries in
// memory. Writes are whole-file atomic renames, so an interrupted process
// never leaves a partial entry behind.
type Cache struct {
	dir string
	mu  sync.RWMutex
	mem map[string]Entry
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagram cache dir: %w", err)
	}
	return &Cache{dir: dir, mem: map[string]Entry{}}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

// Get returns the entry for hash. Unreadable or corrupt files count as misses.
func (c *Cache) Get(hash string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.mem[hash]
	c.mu.RUnlock()
	if ok {
		return e, true
	}

	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		return Entry{}, false
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}
	c.mu.Lock()
	c.mem[hash] = e
	c.mu.Unlock()
	return e, true
}

// Put persists an entry.
func (c *Cache) Put(hash string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, hash+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path(hash)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache file: %w", err)
	}

	c.mu.Lock()
	c.mem[hash] = e
	c.mu.Unlock()
	return nil
}
