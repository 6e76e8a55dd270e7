package source

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

// NewFile builds a File from raw bytes and computes its line index and hash.
func NewFile(path string, content []byte, flags FileFlags) *File {
	if bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}) {
		flags |= FileHadBOM
	}
	if bytes.Contains(content, []byte("\r\n")) {
		flags |= FileHasCRLF
	}
	return &File{
		Path:    normalizePath(path),
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
		Flags:   flags,
	}
}

// NewVirtualFile wraps editor buffer text.
func NewVirtualFile(path, text string) *File {
	return NewFile(path, []byte(text), FileVirtual)
}

// Load reads a file from disk without normalizing line endings.
func Load(path string) (*File, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewFile(path, content, 0), nil
}

// LineCount returns the number of lines, counting a trailing partial line.
func (f *File) LineCount() int {
	if f == nil {
		return 0
	}
	return len(f.LineIdx) + 1
}

// Line returns the text of the zero-based line without its terminator.
func (f *File) Line(n int) string {
	if f == nil || n < 0 || n > len(f.LineIdx) {
		return ""
	}
	start := uint32(0)
	if n > 0 {
		start = f.LineIdx[n-1] + 1
	}
	end := safeUint32(len(f.Content))
	if n < len(f.LineIdx) {
		end = f.LineIdx[n]
	}
	return string(bytes.TrimSuffix(f.Content[start:end], []byte("\r")))
}

func buildLineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, bytes.Count(content, []byte{'\n'}))
	for i, b := range content {
		if b == '\n' {
			out = append(out, safeUint32(i))
		}
	}
	return out
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	// binary search for the largest lineIdx[i] < off
	lo, hi := 0, len(lineIdx)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		if lineIdx[mid] < off {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	line := hi
	if line < 0 {
		return LineCol{Line: 1, Col: off + 1}
	}
	startOff := lineIdx[line] + 1
	return LineCol{Line: safeUint32(line + 2), Col: off - startOff + 1}
}

// LineColAt converts a byte offset to a 1-based line and byte column.
func (f *File) LineColAt(off uint32) LineCol {
	if f == nil {
		return LineCol{Line: 1, Col: 1}
	}
	if n := safeUint32(len(f.Content)); off > n {
		off = n
	}
	return toLineCol(f.LineIdx, off)
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
