package diag

import "strings"

// Severity defines the importance of a diagnostic. Values match the LSP
// DiagnosticSeverity numbering.
type Severity uint8

const (
	// SevError is for errors.
	SevError Severity = iota + 1
	// SevWarning is for warning diagnostics.
	SevWarning
	// SevInformation is for informational diagnostics.
	SevInformation
	// SevHint is for hints.
	SevHint
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	case SevInformation:
		return "INFO"
	case SevHint:
		return "HINT"
	}
	return "UNKNOWN"
}

// LSP returns the protocol severity number.
func (s Severity) LSP() int {
	if s < SevError || s > SevHint {
		return int(SevWarning)
	}
	return int(s)
}

// ParseSeverity maps a tool severity keyword to a Severity. Unrecognized
// keywords report ok=false and map to SevWarning.
func ParseSeverity(keyword string) (Severity, bool) {
	k := strings.ToLower(strings.TrimSpace(keyword))
	switch k {
	case "error", "fatal", "bug":
		return SevError, true
	case "warning", "warn":
		return SevWarning, true
	case "info", "information", "note", "med", "medium", "low":
		return SevInformation, true
	case "hint", "help", "gas", "code-size", "codesize":
		return SevHint, true
	case "high":
		return SevWarning, true
	}
	// solc uses error types such as "TypeError" and "DeclarationError"
	if strings.HasSuffix(k, "error") || strings.HasSuffix(k, "exception") {
		return SevError, true
	}
	return SevWarning, false
}
