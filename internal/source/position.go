package source

import (
	"sort"
	"unicode/utf8"

	"fortio.org/safecast"
)

const maxUint32 = ^uint32(0)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

func lineBounds(f *File, line int) (uint32, uint32) {
	var start uint32
	if line > 0 {
		start = f.LineIdx[line-1] + 1
	}
	end := safeUint32(len(f.Content))
	if line < len(f.LineIdx) {
		end = f.LineIdx[line]
	}
	return start, end
}

// Offset converts a zero-based line and UTF-16 column to a byte offset.
// Positions past the end of a line clamp to the line end; lines past the
// end of the file clamp to the content length.
func (f *File) Offset(pos Position) uint32 {
	if f == nil || pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	content := f.Content
	if pos.Line >= f.LineCount() {
		return safeUint32(len(content))
	}
	lineStart, lineEnd := lineBounds(f, pos.Line)
	units := 0
	off := lineStart
	for off < lineEnd && units < pos.Character {
		r, size := utf8.DecodeRune(content[off:lineEnd])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		off += safeUint32(size)
	}
	return off
}

// Position converts a byte offset to a zero-based line and UTF-16 column.
func (f *File) Position(offset uint32) Position {
	if f == nil {
		return Position{}
	}
	if n := safeUint32(len(f.Content)); offset > n {
		offset = n
	}
	lineIdx := f.LineIdx
	line := sort.Search(len(lineIdx), func(i int) bool { return lineIdx[i] >= offset })
	lineStart, _ := lineBounds(f, line)
	units := 0
	for off := lineStart; off < offset; {
		r, size := utf8.DecodeRune(f.Content[off:offset])
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		off += safeUint32(size)
	}
	return Position{Line: line, Character: units}
}

// Range converts a byte span to a position range.
func (f *File) Range(span Span) Range {
	if span.End < span.Start {
		span.End = span.Start
	}
	return Range{Start: f.Position(span.Start), End: f.Position(span.End)}
}

// PositionFromLineCol converts a 1-based line and 1-based byte column, the
// shape most terminal-oriented tools print, into a zero-based position.
func (f *File) PositionFromLineCol(line, col int) Position {
	if f == nil || line < 1 {
		return Position{}
	}
	if line > f.LineCount() {
		return f.Position(safeUint32(len(f.Content)))
	}
	start, end := lineBounds(f, line-1)
	off := start + safeUint32(max(col-1, 0))
	if off > end {
		off = end
	}
	return f.Position(off)
}
