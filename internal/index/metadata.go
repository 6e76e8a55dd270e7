package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"forgelsp/internal/project"
)

// FileEntry is one solidity-files-cache.json record. Imports are absolute.
type FileEntry struct {
	Imports   []string
	Artifacts []string
}

type filesCacheDoc struct {
	Files map[string]struct {
		Imports   []string        `json:"imports"`
		Artifacts json.RawMessage `json:"artifacts"`
	} `json:"files"`
}

// loadFilesCache reads forge's file dependency cache. A missing file is not
// an error.
func loadFilesCache(root, path string) (map[string]FileEntry, error) {
	// #nosec G304 -- path is derived from the project manifest
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]FileEntry{}, nil
		}
		return map[string]FileEntry{}, err
	}
	var doc filesCacheDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]FileEntry{}, fmt.Errorf("%s: %w", path, err)
	}
	out := make(map[string]FileEntry, len(doc.Files))
	for file, rec := range doc.Files {
		entry := FileEntry{Imports: make([]string, 0, len(rec.Imports))}
		for _, imp := range rec.Imports {
			entry.Imports = append(entry.Imports, absUnder(root, imp))
		}
		entry.Artifacts = collectStrings(rec.Artifacts)
		out[absUnder(root, file)] = entry
	}
	return out, nil
}

// collectStrings flattens every string leaf of a JSON value, sorted.
func collectStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var out []string
	var walk func(any)
	walk = func(n any) {
		switch t := n.(type) {
		case string:
			out = append(out, t)
		case []any:
			for _, c := range t {
				walk(c)
			}
		case map[string]any:
			for _, c := range t {
				walk(c)
			}
		}
	}
	walk(v)
	sort.Strings(out)
	return out
}

type buildInfoDoc struct {
	SourceIDToPath map[string]string `json:"source_id_to_path"`
	Output         struct {
		Sources map[string]struct {
			ID *int `json:"id"`
		} `json:"sources"`
	} `json:"output"`
}

// loadBuildInfo merges every build-info document's source id table. Files
// that fail to decode are reported and skipped.
func loadBuildInfo(root, dir string) (map[string]string, []error) {
	out := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return out, []error{err}
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		// #nosec G304 -- build-info path under the project output dir
		raw, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var doc buildInfoDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		for id, p := range doc.SourceIDToPath {
			out[id] = absUnder(root, p)
		}
		for p, src := range doc.Output.Sources {
			if src.ID != nil {
				out[strconv.Itoa(*src.ID)] = absUnder(root, p)
			}
		}
	}
	return out, errs
}

func absUnder(root, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// artifactFingerprint summarises the on-disk inputs of a snapshot. Any
// change means the snapshot must be rebuilt.
func artifactFingerprint(m *project.Manifest) string {
	var b strings.Builder
	for _, p := range []string{m.Path, m.RemappingsFile(), m.FilesCache(), m.BuildInfoDir()} {
		if p == "" {
			continue
		}
		b.WriteString(p)
		if info, err := os.Stat(p); err == nil {
			fmt.Fprintf(&b, "@%d/%d", info.ModTime().UnixNano(), info.Size())
		} else {
			b.WriteString("@-")
		}
		b.WriteByte(';')
	}
	return b.String()
}
