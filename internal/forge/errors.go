package forge

import "errors"

var (
	// ErrToolUnavailable means the forge executable could not be launched.
	ErrToolUnavailable = errors.New("forge executable unavailable")
	// ErrToolTimeout means an invocation hit its deadline. Results returned
	// alongside it were parsed from partial output.
	ErrToolTimeout = errors.New("forge invocation timed out")
)
