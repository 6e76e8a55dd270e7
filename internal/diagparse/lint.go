package diagparse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"forgelsp/internal/diag"
	"forgelsp/internal/escape"
)

type lintSpan struct {
	FileName    string `json:"file_name"`
	ByteStart   *int   `json:"byte_start"`
	ByteEnd     *int   `json:"byte_end"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	ColumnStart int    `json:"column_start"`
	ColumnEnd   int    `json:"column_end"`
	IsPrimary   bool   `json:"is_primary"`
}

type lintCode struct {
	Code string `json:"code"`
}

// UnmarshalJSON accepts both {"code": "x"} and a bare string.
func (c *lintCode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Code = s
		return nil
	}
	type plain lintCode
	return json.Unmarshal(b, (*plain)(c))
}

type lintRecord struct {
	MessageType string       `json:"$message_type"`
	Message     string       `json:"message"`
	Level       string       `json:"level"`
	Code        *lintCode    `json:"code"`
	Spans       []lintSpan   `json:"spans"`
	Children    []lintRecord `json:"children"`
	Rendered    string       `json:"rendered"`
}

// ParseLint parses `forge lint --json` output: one JSON record per line.
// Lines that do not start with '{' are tool chatter and are ignored.
// Records whose $message_type is something other than "diag" are ignored.
// Top-level help records contribute a help link to the diagnostic before
// them and are never emitted on their own.
func ParseLint(data []byte, opts Options) Batch {
	var out Batch
	files := newFileCache(opts)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var rec lintRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			out.Skipped++
			continue
		}
		if rec.MessageType != "" && rec.MessageType != "diag" {
			continue
		}
		if strings.EqualFold(rec.Level, "help") {
			if n := len(out.Diagnostics); n > 0 && out.Diagnostics[n-1].HelpURL == "" {
				out.Diagnostics[n-1].HelpURL = recordURL(&rec)
			}
			continue
		}
		d, ok := convertLint(&rec, opts, files)
		if !ok {
			out.Skipped++
			continue
		}
		out.Diagnostics = append(out.Diagnostics, d)
	}
	return out
}

func convertLint(rec *lintRecord, opts Options, files *fileCache) (diag.Diagnostic, bool) {
	var primary *lintSpan
	for i := range rec.Spans {
		if rec.Spans[i].IsPrimary {
			primary = &rec.Spans[i]
			break
		}
	}
	if primary == nil || primary.FileName == "" {
		return diag.Diagnostic{}, false
	}
	path := ResolvePath(opts.WorkDir, primary.FileName)
	rng, ok := rangeFor(files.get(path), primary.ByteStart, primary.ByteEnd,
		primary.LineStart, primary.ColumnStart, primary.LineEnd, primary.ColumnEnd)
	if !ok {
		return diag.Diagnostic{}, false
	}

	code := ""
	if rec.Code != nil {
		code = strings.TrimSpace(rec.Code.Code)
	}
	sev, _ := diag.ParseSeverity(rec.Level)
	return diag.Diagnostic{
		FilePath: path,
		Range:    rng,
		Severity: sev,
		Source:   diag.SourceLint,
		Code:     code,
		Message:  lintMessage(rec, code),
		HelpURL:  lintHelpURL(rec),
	}, true
}

// lintMessage picks the first non-empty of: the record message, a child
// message, the first line of the rendered text, a description of the code.
func lintMessage(rec *lintRecord, code string) string {
	if msg := strings.TrimSpace(escape.Clean(rec.Message)); msg != "" {
		return msg
	}
	for i := range rec.Children {
		child := &rec.Children[i]
		if strings.EqualFold(child.Level, "help") && isOnlyURL(child.Message) {
			continue
		}
		if msg := strings.TrimSpace(escape.Clean(child.Message)); msg != "" {
			return msg
		}
	}
	if msg := headline(rec.Rendered); msg != "" {
		return msg
	}
	return DescribeCode(code)
}

func lintHelpURL(rec *lintRecord) string {
	if u := escape.FirstLink(rec.Message); u != "" {
		return u
	}
	for i := range rec.Children {
		child := &rec.Children[i]
		if !strings.EqualFold(child.Level, "help") {
			continue
		}
		if u := findURL(child.Message); u != "" {
			return u
		}
	}
	if m := helpURLRE.FindStringSubmatch(escape.Clean(rec.Rendered)); m != nil {
		return trimURL(m[1])
	}
	return escape.FirstLink(rec.Rendered)
}

func recordURL(rec *lintRecord) string {
	if u := findURL(rec.Message); u != "" {
		return u
	}
	if u := lintHelpURL(rec); u != "" {
		return u
	}
	return findURL(rec.Rendered)
}
