package index

import "forgelsp/internal/source"

// SymbolKind classifies a declaration.
type SymbolKind uint8

const (
	KindContract SymbolKind = iota
	KindFunction
	KindEvent
	KindStruct
	KindEnum
	KindVariable
	KindModifier
)

func (k SymbolKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindFunction:
		return "function"
	case KindEvent:
		return "event"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindVariable:
		return "variable"
	case KindModifier:
		return "modifier"
	}
	return "unknown"
}

// LSP returns the protocol SymbolKind number.
func (k SymbolKind) LSP() int {
	switch k {
	case KindContract:
		return 5 // Class
	case KindFunction:
		return 12
	case KindEvent:
		return 24
	case KindStruct:
		return 23
	case KindEnum:
		return 10
	case KindModifier:
		return 6 // Method
	}
	return 13 // Variable
}

// SymbolEntry is a declaration found by lexical pattern matching. Several
// entries may share a name; lookups always return sets.
type SymbolEntry struct {
	Name      string
	Kind      SymbolKind
	Detail    string // "interface", "library", "abstract contract", ...
	Container string // enclosing contract, if any
	FilePath  string
	Line      int // zero-based
	Column    int // zero-based, UTF-16
	Range     source.Range
}

// Location is a range in a file.
type Location struct {
	FilePath string
	Range    source.Range
}

// TextEdit replaces Range in FilePath with NewText.
type TextEdit struct {
	FilePath string
	Range    source.Range
	NewText  string
}

// ImportRef is an import path literal, Range covering the text between the
// quotes.
type ImportRef struct {
	Path  string
	Range source.Range
}
