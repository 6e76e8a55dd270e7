package diagfmt

import (
	"encoding/json"
	"io"
	"strings"

	"forgelsp/internal/diag"
)

// DiagnosticJSON is one finding in JSON output. Lines and columns are
// one-based; columns count UTF-16 code units.
type DiagnosticJSON struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line"`
	EndColumn int    `json:"end_column"`
	Severity  string `json:"severity"`
	Code      string `json:"code,omitempty"`
	Source    string `json:"source"`
	Message   string `json:"message"`
	HelpURL   string `json:"help_url,omitempty"`
}

// DiagnosticsJSON is the top-level JSON document.
type DiagnosticsJSON struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
	Truncated   bool             `json:"truncated,omitempty"`
}

// BuildJSON converts diagnostics for JSON output. Counts always cover the
// full input even when Max truncates the list.
func BuildJSON(diags []diag.Diagnostic, opts JSONOpts) DiagnosticsJSON {
	bag := diag.NewBag(diags...)
	out := DiagnosticsJSON{
		Diagnostics: make([]DiagnosticJSON, 0, len(diags)),
		Count:       len(diags),
		Errors:      bag.Count(diag.SevError),
		Warnings:    bag.Count(diag.SevWarning),
	}
	for i, d := range diags {
		if opts.Max > 0 && i >= opts.Max {
			out.Truncated = true
			break
		}
		out.Diagnostics = append(out.Diagnostics, DiagnosticJSON{
			File:      displayPath(d.FilePath, opts.PathMode, opts.BaseDir),
			Line:      d.Range.Start.Line + 1,
			Column:    d.Range.Start.Character + 1,
			EndLine:   d.Range.End.Line + 1,
			EndColumn: d.Range.End.Character + 1,
			Severity:  strings.ToLower(d.Severity.String()),
			Code:      d.Code,
			Source:    d.Source.String(),
			Message:   d.Message,
			HelpURL:   d.HelpURL,
		})
	}
	return out
}

// JSON writes diagnostics as an indented JSON document.
func JSON(w io.Writer, diags []diag.Diagnostic, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildJSON(diags, opts))
}
