// Package cache speeds up repeated compilations by remembering source
// file digests keyed by size and modification time.
package cache

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"
)

// Cache is a digest store backed by a sqlite file. A file whose size
// and mtime are unchanged since the last compilation keeps its cached
// digest and is never rehashed.
type Cache struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS source_cache (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL,
	digest TEXT NOT NULL
);
`

// Open opens or creates the cache of a source tree. The database
// lives at {dir}/.reo/cache/files.db.
func Open(dir string) (*Cache, error) {
	cacheDir := filepath.Join(dir, ".reo", "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", cacheDir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(cacheDir, "files.db"))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Digest returns the blake3 digest of a source file, reusing the
// cached value when size and mtime still match.
func (c *Cache) Digest(path string, info os.FileInfo, content []byte) string {
	size := info.Size()
	mtime := info.ModTime().UnixNano()
	var cachedSize, cachedMtime int64
	var cached string
	err := c.db.QueryRow(
		"SELECT size, mtime, digest FROM source_cache WHERE path = ?",
		path,
	).Scan(&cachedSize, &cachedMtime, &cached)
	if err == nil && cachedSize == size && cachedMtime == mtime {
		return cached
	}
	sum := blake3.Sum256(content)
	digest := hex.EncodeToString(sum[:])
	// A failed write only costs speed on the next run.
	_, _ = c.db.Exec(
		"INSERT OR REPLACE INTO source_cache (path, size, mtime, digest) VALUES (?, ?, ?, ?)",
		path, size, mtime, digest,
	)
	return digest
}

// Clear drops all cached digests.
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM source_cache")
	return err
}
