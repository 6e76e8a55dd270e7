package lsp

import "forgelsp/internal/source"

// applyChanges applies didChange events in order. An event without a range
// replaces the whole buffer.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		f := source.NewVirtualFile("", text)
		start := int(f.Offset(fromLSPPosition(change.Range.Start)))
		end := max(int(f.Offset(fromLSPPosition(change.Range.End))), start)
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// offsetForPosition converts an LSP position in text to a byte offset,
// clamping to the line end and to the end of text.
func offsetForPosition(text string, pos position) int {
	return int(source.NewVirtualFile("", text).Offset(fromLSPPosition(pos)))
}
