// Package escape removes terminal control sequences from tool output.
//
// Complete CSI sequences (colours, cursor movement) and complete OSC
// sequences are removed. OSC 8 hyperlinks keep their visible label and
// their target URL is reported separately. Anything that does not form a
// complete sequence is copied through unchanged, so a stray ESC byte never
// swallows the text that follows it.
package escape

import "strings"

const (
	esc = 0x1b
	bel = 0x07
)

// Clean returns text with every complete CSI and OSC sequence removed.
// Clean(Clean(s)) == Clean(s) for any s.
func Clean(text string) string {
	out, _ := CleanWithLinks(text)
	return out
}

// Links returns the hyperlink targets embedded in OSC 8 sequences, in order
// of appearance and without duplicates.
func Links(text string) []string {
	_, links := CleanWithLinks(text)
	return links
}

// FirstLink returns the first OSC 8 target, or "".
func FirstLink(text string) string {
	if links := Links(text); len(links) > 0 {
		return links[0]
	}
	return ""
}

// CleanWithLinks is Clean plus the hyperlink targets it removed.
func CleanWithLinks(text string) (string, []string) {
	var links []string
	for {
		if strings.IndexByte(text, esc) < 0 {
			return text, links
		}
		next, found, changed := strip(text)
		for _, l := range found {
			links = appendUnique(links, l)
		}
		// removing a sequence can splice two fragments into a new one
		if !changed {
			return next, links
		}
		text = next
	}
}

func strip(text string) (string, []string, bool) {
	var b strings.Builder
	b.Grow(len(text))
	var links []string
	changed := false
	i := 0
	for i < len(text) {
		c := text[i]
		if c != esc || i+1 >= len(text) {
			b.WriteByte(c)
			i++
			continue
		}
		switch text[i+1] {
		case '[':
			if end, ok := scanCSI(text, i+2); ok {
				i = end
				changed = true
				continue
			}
		case ']':
			if body, end, ok := scanOSC(text, i+2); ok {
				if url, ok := hyperlinkTarget(body); ok && url != "" {
					links = append(links, url)
				}
				i = end
				changed = true
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), links, changed
}

// scanCSI returns the index after the final byte of a CSI sequence whose
// parameters start at i.
func scanCSI(text string, i int) (int, bool) {
	for i < len(text) {
		c := text[i]
		switch {
		case c >= 0x30 && c <= 0x3f, c >= 0x20 && c <= 0x2f:
			i++
		case c >= 0x40 && c <= 0x7e:
			return i + 1, true
		default:
			return 0, false
		}
	}
	return 0, false
}

// scanOSC returns the body of an OSC sequence starting at i and the index
// after its terminator (BEL or ESC \).
func scanOSC(text string, i int) (string, int, bool) {
	for j := i; j < len(text); j++ {
		switch text[j] {
		case bel:
			return text[i:j], j + 1, true
		case esc:
			if j+1 < len(text) && text[j+1] == '\\' {
				return text[i:j], j + 2, true
			}
			return "", 0, false
		case '\n':
			return "", 0, false
		}
	}
	return "", 0, false
}

// hyperlinkTarget parses "8;params;uri".
func hyperlinkTarget(body string) (string, bool) {
	rest, ok := strings.CutPrefix(body, "8;")
	if !ok {
		return "", false
	}
	_, uri, ok := strings.Cut(rest, ";")
	if !ok {
		return "", false
	}
	return uri, true
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
