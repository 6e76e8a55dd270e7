package source

type (
	// FileFlags encodes metadata about a source file.
	FileFlags uint8
)

const (
	// FileVirtual indicates the file content came from an editor buffer, not disk.
	FileVirtual FileFlags = 1 << iota
	// FileHadBOM marks content that starts with a UTF-8 byte order mark.
	FileHadBOM
	// FileHasCRLF marks content that uses \r\n line endings somewhere.
	FileHasCRLF
)

// File captures metadata and content for a single source file.
// Content is kept byte-exact so offsets reported by external tools stay valid.
type File struct {
	Path    string
	Content []byte
	LineIdx []uint32 // offsets of every '\n'
	Hash    [32]byte
	Flags   FileFlags
}

// Span is a half-open byte range [Start, End) within a file.
type Span struct {
	Start uint32
	End   uint32
}

// SpanOf builds a span from int byte offsets. Negative offsets clamp to 0
// and offsets past the uint32 range clamp to its maximum.
func SpanOf(start, end int) Span {
	return Span{Start: safeUint32(start), End: safeUint32(end)}
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool { return s.End <= s.Start }

// Position is a zero-based line and UTF-16 column, the unit editors count in.
type Position struct {
	Line      int
	Character int
}

// Range is a pair of positions.
type Range struct {
	Start Position
	End   Position
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based, bytes
}
