package diagparse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"forgelsp/internal/diag"
	"forgelsp/internal/escape"
	"forgelsp/internal/source"
)

type compileLocation struct {
	File  string `json:"file"`
	Start *int   `json:"start"`
	End   *int   `json:"end"`
}

type compileRecord struct {
	SourceLocation   *compileLocation `json:"sourceLocation"`
	Type             string           `json:"type"`
	Component        string           `json:"component"`
	Severity         string           `json:"severity"`
	ErrorCode        json.RawMessage  `json:"errorCode"`
	Message          string           `json:"message"`
	FormattedMessage string           `json:"formattedMessage"`
}

type compileEnvelope struct {
	Errors []json.RawMessage `json:"errors"`
}

var (
	arrowRE     = regexp.MustCompile(`-->\s*(.+?):(\d+):(\d+)`)
	arrowFileRE = regexp.MustCompile(`(?m)-->\s*(\S+?)\s*$`)
)

// ParseCompile parses `forge compile --json` output. Both the batch form
// ({"errors": [...]}) and one JSON object per line are accepted.
func ParseCompile(data []byte, opts Options) Batch {
	p := compileParser{opts: opts, files: newFileCache(opts)}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return p.out
	}
	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err == nil {
			p.records(records)
			return p.out
		}
	}
	if trimmed[0] == '{' && json.Valid(trimmed) {
		p.object(trimmed)
		return p.out
	}
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		if !json.Valid(line) {
			p.out.Skipped++
			continue
		}
		p.object(line)
	}
	return p.out
}

type compileParser struct {
	opts  Options
	files *fileCache
	out   Batch
}

func (p *compileParser) object(raw []byte) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		p.out.Skipped++
		return
	}
	if _, ok := probe["errors"]; ok {
		var env compileEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			p.out.Skipped++
			return
		}
		p.records(env.Errors)
		return
	}
	p.record(raw)
}

func (p *compileParser) records(list []json.RawMessage) {
	for _, raw := range list {
		p.record(raw)
	}
}

func (p *compileParser) record(raw []byte) {
	var rec compileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		p.out.Skipped++
		return
	}
	d, ok := p.convert(&rec)
	if !ok {
		p.out.Skipped++
		return
	}
	p.out.Diagnostics = append(p.out.Diagnostics, d)
}

func (p *compileParser) convert(rec *compileRecord) (diag.Diagnostic, bool) {
	formatted := escape.Clean(rec.FormattedMessage)

	var file string
	var start, end *int
	if loc := rec.SourceLocation; loc != nil {
		file = loc.File
		start, end = loc.Start, loc.End
	}
	line, col := 0, 0
	if m := arrowRE.FindStringSubmatch(formatted); m != nil {
		if file == "" {
			file = strings.TrimSpace(m[1])
		}
		line, _ = strconv.Atoi(m[2])
		col, _ = strconv.Atoi(m[3])
	}
	if file == "" {
		if m := arrowFileRE.FindStringSubmatch(formatted); m != nil {
			file = m[1]
		}
	}

	msg := strings.TrimSpace(escape.Clean(rec.Message))
	if msg == "" {
		msg = headline(rec.FormattedMessage)
	}

	// file-level records (solc's SPDX warning) carry neither offsets nor a
	// printed position and anchor at the start of the file; records with no
	// file at all keep an empty path for the caller to attach
	var path string
	var rng source.Range
	switch {
	case file != "":
		path = ResolvePath(p.opts.WorkDir, file)
		if r, ok := rangeFor(p.files.get(path), start, end, line, col, 0, 0); ok {
			rng = r
		}
	case msg == "":
		return diag.Diagnostic{}, false
	}

	keyword := rec.Severity
	if keyword == "" {
		keyword = rec.Type
	}
	sev, _ := diag.ParseSeverity(keyword)

	help := escape.FirstLink(rec.FormattedMessage)
	if help == "" {
		if m := helpURLRE.FindStringSubmatch(formatted); m != nil {
			help = trimURL(m[1])
		}
	}

	src := diag.SourceCompile
	if strings.Contains(strings.ToLower(rec.Component), "lint") {
		src = diag.SourceLint
	}
	return diag.Diagnostic{
		FilePath: path,
		Range:    rng,
		Severity: sev,
		Source:   src,
		Code:     errorCode(rec.ErrorCode),
		Message:  msg,
		HelpURL:  help,
	}, true
}

func errorCode(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
