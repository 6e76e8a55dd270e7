package index

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrImportNotFound means no rule and no file matched an import path.
	// It is a "no result" signal, not a failure.
	ErrImportNotFound = errors.New("import not found")
	// ErrRenameConflict means the new name already has declarations in the
	// project, so a text-based rename could make references ambiguous.
	ErrRenameConflict = errors.New("rename conflict")
	// ErrInvalidName means the requested name is not a valid identifier.
	ErrInvalidName = errors.New("invalid identifier")
	// ErrNotRenameable means the token under the cursor is a keyword, a
	// builtin type, or a name with no declaration in the project.
	ErrNotRenameable = errors.New("not renameable")
)

// ConflictError lists the declarations that block a rename.
type ConflictError struct {
	NewName  string
	Existing []SymbolEntry
}

func (e *ConflictError) Error() string {
	locs := make([]string, 0, len(e.Existing))
	for _, s := range e.Existing {
		locs = append(locs, fmt.Sprintf("%s:%d", s.FilePath, s.Line+1))
	}
	return fmt.Sprintf("%s: %q is already declared at %s", ErrRenameConflict, e.NewName, strings.Join(locs, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrRenameConflict }
