package diag

import "forgelsp/internal/source"

// Source tags which tool mode produced a diagnostic.
type Source uint8

const (
	// SourceCompile marks compiler diagnostics.
	SourceCompile Source = iota
	// SourceLint marks linter diagnostics.
	SourceLint
)

func (s Source) String() string {
	if s == SourceLint {
		return "forge-lint"
	}
	return "forge-compile"
}

// Diagnostic is an immutable finding reported by the external tool.
type Diagnostic struct {
	FilePath string
	Range    source.Range
	Severity Severity
	Source   Source
	Code     string
	Message  string
	HelpURL  string
}
