// Package diag defines the diagnostic record shared by the parsers, the
// diagnostic cache and the protocol layer.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - FilePath: absolute path of the file the primary span points into.
//   - Range: zero-based line/UTF-16 column range, computed from byte offsets
//     against the file's real line breaks whenever offsets are available.
//   - Severity: one of Error, Warning, Information, Hint (LSP order).
//   - Source: which tool mode produced the record (Compile or Lint).
//   - Code: optional tool-specific identifier, e.g. "2072" or "unused-import".
//   - Message: normalized, escape-free text.
//   - HelpURL: optional documentation link.
//
// Diagnostics are values. Producers build them once and never mutate them
// afterwards; consumers that need a different shape copy.
//
// Compile and lint findings for the same file are concatenated, never
// deduplicated against each other, since the two modes run disjoint rule
// sets. Use Bag.BySource to split them again.
package diag
