package lsp

import (
	"log/slog"
	"sort"

	"forgelsp/internal/diag"
	"forgelsp/internal/source"
)

// publishDiagnostics is the docstore's publish hook. The docstore has
// already checked that version is current.
func (s *Server) publishDiagnostics(uri string, version int, diags []diag.Diagnostic) {
	list := make([]lspDiagnostic, 0, len(diags))
	for _, d := range diags {
		list = append(list, toLSPDiagnostic(d))
	}
	s.mu.Lock()
	if s.shutdownRequested {
		s.mu.Unlock()
		return
	}
	if len(list) > 0 {
		s.published[uri] = struct{}{}
	} else {
		delete(s.published, uri)
	}
	s.mu.Unlock()
	if err := s.sendPublish(uri, &version, list); err != nil {
		s.log.Warn("failed to publish diagnostics", slog.String("uri", uri), slog.String("error", err.Error()))
	}
	s.logf("publishDiagnostics", slog.String("uri", uri), slog.Int("version", version), slog.Int("diagnostics", len(list)))
}

func toLSPDiagnostic(d diag.Diagnostic) lspDiagnostic {
	out := lspDiagnostic{
		Range:    toLSPRange(d.Range),
		Severity: d.Severity.LSP(),
		Code:     d.Code,
		Source:   d.Source.String(),
		Message:  d.Message,
	}
	if d.HelpURL != "" {
		out.CodeDescription = &codeDescription{Href: d.HelpURL}
	}
	return out
}

func toLSPRange(r source.Range) lspRange {
	return lspRange{
		Start: position{Line: r.Start.Line, Character: r.Start.Character},
		End:   position{Line: r.End.Line, Character: r.End.Character},
	}
}

func fromLSPPosition(p position) source.Position {
	return source.Position{Line: p.Line, Character: p.Character}
}

func (s *Server) sendPublish(uri string, version *int, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: list,
	})
}

func (s *Server) clearPublishedDiagnostics() {
	s.mu.Lock()
	if len(s.published) == 0 {
		s.mu.Unlock()
		return
	}
	prev := s.published
	s.published = make(map[string]struct{})
	s.mu.Unlock()
	uris := make([]string, 0, len(prev))
	for uri := range prev {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	for _, uri := range uris {
		if err := s.sendPublish(uri, nil, nil); err != nil {
			s.log.Warn("failed to clear diagnostics", slog.String("uri", uri), slog.String("error", err.Error()))
		}
	}
}
