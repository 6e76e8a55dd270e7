package index

import (
	"regexp"
	"sort"

	"forgelsp/internal/source"
)

// fileScan is everything the index extracts from one file. Fields are
// exported for the msgpack disk cache.
type fileScan struct {
	Path    string
	Hash    [32]byte
	Symbols []SymbolEntry
	Refs    map[string][]source.Range
	Imports []ImportRef
}

var (
	declRE       = regexp.MustCompile(`\b(abstract\s+contract|contract|interface|library|function|modifier|event|struct|enum)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	varRE        = regexp.MustCompile(`\b(?:u?int\d*|bytes\d*|bool|string|address(?:\s+payable)?|mapping\s*\([^;{}]*\)|[A-Z][A-Za-z0-9_$]*(?:\.[A-Za-z_$][A-Za-z0-9_$]*)*)(?:\s*\[[^\]]*\])*(?:\s+(?:public|private|internal|external|constant|immutable|override|memory|storage|calldata|transient|payable|indexed))*\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*[;=,)]`)
	importStmtRE = regexp.MustCompile(`\bimport\b[^;]*;`)
	quotedRE     = regexp.MustCompile(`"([^"\n]*)"|'([^'\n]*)'`)
)

var keywords = map[string]bool{
	"abstract": true, "address": true, "anonymous": true, "as": true, "assembly": true, "bool": true,
	"break": true, "calldata": true, "catch": true, "constant": true, "constructor": true, "continue": true,
	"contract": true, "delete": true, "do": true, "else": true, "emit": true, "enum": true, "error": true,
	"event": true, "external": true, "fallback": true, "false": true, "for": true, "from": true,
	"function": true, "if": true, "immutable": true, "import": true, "indexed": true, "interface": true,
	"internal": true, "is": true, "library": true, "mapping": true, "memory": true, "modifier": true,
	"new": true, "override": true, "payable": true, "pragma": true, "private": true, "public": true,
	"pure": true, "receive": true, "return": true, "returns": true, "revert": true, "storage": true,
	"string": true, "struct": true, "this": true, "transient": true, "true": true, "try": true,
	"type": true, "unchecked": true, "using": true, "view": true, "virtual": true, "while": true,
}

var declKinds = map[string]SymbolKind{
	"contract":  KindContract,
	"interface": KindContract,
	"library":   KindContract,
	"function":  KindFunction,
	"modifier":  KindModifier,
	"event":     KindEvent,
	"struct":    KindStruct,
	"enum":      KindEnum,
}

// scanFile extracts declarations, identifier occurrences and imports.
func scanFile(file *source.File) *fileScan {
	masked := maskCommentsAndStrings(file.Content)
	scan := &fileScan{
		Path: file.Path,
		Hash: file.Hash,
		Refs: make(map[string][]source.Range),
	}

	bodies := contractBodies(masked)
	containerAt := func(off int) string {
		name := ""
		for _, b := range bodies {
			if off > b.open && off < b.close {
				name = b.name // innermost wins; bodies are ordered by open
			}
		}
		return name
	}
	add := func(kind SymbolKind, detail string, nameStart, nameEnd int) {
		rng := file.Range(source.SpanOf(nameStart, nameEnd))
		container := containerAt(nameStart)
		if kind == KindContract {
			container = ""
		}
		scan.Symbols = append(scan.Symbols, SymbolEntry{
			Name:      string(file.Content[nameStart:nameEnd]),
			Kind:      kind,
			Detail:    detail,
			Container: container,
			FilePath:  file.Path,
			Line:      rng.Start.Line,
			Column:    rng.Start.Character,
			Range:     rng,
		})
	}

	declared := make(map[int]bool)
	for _, m := range declRE.FindAllSubmatchIndex(masked, -1) {
		keyword := collapseSpaces(string(masked[m[2]:m[3]]))
		kind, ok := declKinds[keyword]
		if keyword == "abstract contract" {
			kind, ok = KindContract, true
		}
		if !ok || keywords[string(masked[m[4]:m[5]])] {
			continue
		}
		detail := ""
		if keyword != "contract" {
			detail = keyword
		}
		declared[m[4]] = true
		add(kind, detail, m[4], m[5])
	}
	for _, m := range varRE.FindAllSubmatchIndex(masked, -1) {
		name := string(masked[m[2]:m[3]])
		if keywords[name] || declared[m[2]] {
			continue
		}
		add(KindVariable, "", m[2], m[3])
	}
	sort.SliceStable(scan.Symbols, func(i, j int) bool {
		a, b := scan.Symbols[i], scan.Symbols[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})

	forEachIdent(masked, func(start, end int) {
		name := string(masked[start:end])
		scan.Refs[name] = append(scan.Refs[name], file.Range(source.SpanOf(start, end)))
	})

	for _, stmt := range importStmtRE.FindAllIndex(masked, -1) {
		raw := file.Content[stmt[0]:stmt[1]]
		for _, q := range quotedRE.FindAllSubmatchIndex(raw, -1) {
			s, e := q[2], q[3]
			if s < 0 {
				s, e = q[4], q[5]
			}
			scan.Imports = append(scan.Imports, ImportRef{
				Path:  string(raw[s:e]),
				Range: file.Range(source.SpanOf(stmt[0]+s, stmt[0]+e)),
			})
		}
	}
	return scan
}

func collapseSpaces(s string) string {
	out := make([]byte, 0, len(s))
	space := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, c)
	}
	return string(out)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// forEachIdent calls fn for every identifier token. Numeric literals such
// as 0xff or 1e18 are skipped whole.
func forEachIdent(src []byte, fn func(start, end int)) {
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c >= '0' && c <= '9':
			for i < len(src) && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			fn(start, i)
		default:
			i++
		}
	}
}

// maskCommentsAndStrings blanks comments and string literals with spaces,
// keeping line breaks, so byte offsets stay aligned with the source.
func maskCommentsAndStrings(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	blank := func(from, to int) {
		for k := from; k < to && k < len(out); k++ {
			if out[k] != '\n' && out[k] != '\r' {
				out[k] = ' '
			}
		}
	}
	n := len(src)
	i := 0
	for i < n {
		c := src[i]
		switch {
		case c == '/' && i+1 < n && src[i+1] == '/':
			j := i
			for j < n && src[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case c == '/' && i+1 < n && src[i+1] == '*':
			j := i + 2
			for j < n && !(src[j] == '*' && j+1 < n && src[j+1] == '/') {
				j++
			}
			j = min(j+2, n)
			blank(i, j)
			i = j
		case c == '"' || c == '\'':
			j := i + 1
			for j < n && src[j] != c && src[j] != '\n' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			j = min(j+1, n)
			blank(i, j)
			i = j
		default:
			i++
		}
	}
	return out
}

type body struct {
	name        string
	open, close int
}

var contractHeadRE = regexp.MustCompile(`\b(?:contract|interface|library)\s+([A-Za-z_$][A-Za-z0-9_$]*)[^{;]*\{`)

// contractBodies returns the brace extent of each contract-like body.
func contractBodies(masked []byte) []body {
	var out []body
	for _, m := range contractHeadRE.FindAllSubmatchIndex(masked, -1) {
		open := m[1] - 1
		depth := 0
		closeAt := len(masked)
		for k := open; k < len(masked); k++ {
			switch masked[k] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth == 0 {
				closeAt = k
				break
			}
		}
		out = append(out, body{name: string(masked[m[2]:m[3]]), open: open, close: closeAt})
	}
	return out
}
