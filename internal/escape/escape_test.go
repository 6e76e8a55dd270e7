package escape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanStripsSGR(t *testing.T) {
	in := "\x1b[1m\x1b[31merror\x1b[0m: boom"
	assert.Equal(t, "error: boom", Clean(in))
}

func TestCleanHyperlinkKeepsLabel(t *testing.T) {
	in := "see \x1b]8;;https://book.getfoundry.sh/lint\x1b\\docs\x1b]8;;\x1b\\ here"
	out, links := CleanWithLinks(in)
	assert.Equal(t, "see docs here", out)
	assert.Equal(t, []string{"https://book.getfoundry.sh/lint"}, links)
}

func TestCleanHyperlinkBELTerminated(t *testing.T) {
	in := "\x1b]8;id=1;https://example.com/a\x07label\x1b]8;;\x07"
	assert.Equal(t, "label", Clean(in))
	assert.Equal(t, "https://example.com/a", FirstLink(in))
}

func TestCleanPassesMalformedThrough(t *testing.T) {
	cases := []string{
		"trailing \x1b",
		"half csi \x1b[31",
		"unterminated osc \x1b]8;;https://x.y/z and more",
		"csi with bad byte \x1b[3\x01m",
		"lone \x1bX escape",
	}
	for _, in := range cases {
		assert.Equal(t, in, Clean(in), "%q", in)
	}
}

func TestCleanIdempotent(t *testing.T) {
	cases := []string{
		"",
		"plain text",
		"\x1b[0m",
		"\x1b\x1b[0m[31mred",
		"\x1b]8;;u\x1b\\\x1b[1mx\x1b[0m\x1b]8;;\x1b\\",
		"\x1b[\x1b[0m31m",
		"\x1b]\x1b]8;;a\x07\x07",
		"mixed \x1b[31 \x1b[0m ok",
	}
	for _, in := range cases {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "%q", in)
	}
}

func TestCleanSplicedSequenceRemoved(t *testing.T) {
	assert.Equal(t, "red", Clean("\x1b\x1b[0m[31mred"))
}

func TestLinksDeduplicates(t *testing.T) {
	in := "\x1b]8;;https://a\x07x\x1b]8;;\x07 \x1b]8;;https://a\x07y\x1b]8;;\x07"
	assert.Equal(t, []string{"https://a"}, Links(in))
}
