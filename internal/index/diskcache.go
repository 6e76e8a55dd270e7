package index

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"forgelsp/internal/project"
)

// scanSchemaVersion changes whenever fileScan or the scanner rules change.
const scanSchemaVersion uint16 = 1

// DiskCache persists file scans by content digest, so unchanged library
// files are not re-scanned across sessions. Safe for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

type diskPayload struct {
	Schema uint16
	Scan   *fileScan
}

// OpenDiskCache opens the cache under $XDG_CACHE_HOME/<app>/scans.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return NewDiskCache(filepath.Join(base, app, "scans"))
}

// NewDiskCache opens a cache rooted at dir.
func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func scanKey(hash [32]byte) project.Digest {
	return project.Combine(project.Digest(hash), project.DigestString(fmt.Sprintf("scan/v%d", scanSchemaVersion)))
}

func (c *DiskCache) pathFor(key project.Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, hexKey[:2], hexKey+".mp")
}

// put writes a scan atomically.
func (c *DiskCache) put(scan *fileScan) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(scanKey(scan.Hash))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Debug("scan cache: remove temp file", slog.String("path", tmp), slog.String("error", rmErr.Error()))
		}
	}()
	if err := msgpack.NewEncoder(f).Encode(&diskPayload{Schema: scanSchemaVersion, Scan: scan}); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// get returns the scan stored for hash, relabelled to path.
func (c *DiskCache) get(hash [32]byte, path string) (*fileScan, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	// #nosec G304 -- path is derived from a content digest
	f, err := os.Open(c.pathFor(scanKey(hash)))
	if err != nil {
		return nil, false
	}
	defer f.Close()
	var payload diskPayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil || payload.Schema != scanSchemaVersion || payload.Scan == nil {
		return nil, false
	}
	if payload.Scan.Path != path {
		relabel(payload.Scan, path)
	}
	return payload.Scan, true
}

// relabel points a scan cached for identical content at another path.
func relabel(scan *fileScan, path string) {
	scan.Path = path
	for i := range scan.Symbols {
		scan.Symbols[i].FilePath = path
	}
}
