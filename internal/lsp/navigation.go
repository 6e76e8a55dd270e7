package lsp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"forgelsp/internal/index"
	"forgelsp/internal/project"
)

func toLocation(loc index.Location) location {
	return location{URI: pathToURI(loc.FilePath), Range: toLSPRange(loc.Range)}
}

func toLocations(locs []index.Location) []location {
	out := make([]location, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocation(l))
	}
	return out
}

func toSymbolInformation(syms []index.SymbolEntry) []symbolInformation {
	out := make([]symbolInformation, 0, len(syms))
	for _, sym := range syms {
		out = append(out, symbolInformation{
			Name:          sym.Name,
			Kind:          sym.Kind.LSP(),
			Location:      location{URI: pathToURI(sym.FilePath), Range: toLSPRange(sym.Range)},
			ContainerName: sym.Container,
		})
	}
	return out
}

func (s *Server) handleDefinition(msg *rpcMessage) error {
	var params definitionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	sess, path, ok := s.sessionFor(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, []location{})
	}
	locs, err := sess.Definition(s.ctx, path, fromLSPPosition(params.Position))
	if err != nil {
		s.log.Warn("definition failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return s.sendResponse(msg.ID, toLocations(locs))
}

func (s *Server) handleReferences(msg *rpcMessage) error {
	var params referenceParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	sess, path, ok := s.sessionFor(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, []location{})
	}
	pos := fromLSPPosition(params.Position)
	locs, err := sess.References(s.ctx, path, pos)
	if err != nil {
		s.log.Warn("references failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	if !params.Context.IncludeDeclaration && len(locs) > 0 {
		defs, _ := sess.Definition(s.ctx, path, pos)
		locs = withoutDeclarations(locs, defs)
	}
	return s.sendResponse(msg.ID, toLocations(locs))
}

func withoutDeclarations(locs, defs []index.Location) []index.Location {
	if len(defs) == 0 {
		return locs
	}
	decl := make(map[index.Location]bool, len(defs))
	for _, d := range defs {
		decl[d] = true
	}
	out := locs[:0:0]
	for _, l := range locs {
		if !decl[l] {
			out = append(out, l)
		}
	}
	return out
}

func (s *Server) handlePrepareRename(msg *rpcMessage) error {
	var params textDocumentPositionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	sess, path, ok := s.sessionFor(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	name, rng, ok, err := sess.PrepareRename(s.ctx, path, fromLSPPosition(params.Position))
	switch {
	case err != nil:
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	case !ok:
		return s.sendResponse(msg.ID, nil)
	}
	return s.sendResponse(msg.ID, prepareRenameResult{Range: toLSPRange(rng), Placeholder: name})
}

func (s *Server) handleRename(msg *rpcMessage) error {
	var params renameParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	sess, path, ok := s.sessionFor(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, nil)
	}
	edits, err := sess.Rename(s.ctx, path, fromLSPPosition(params.Position), params.NewName)
	switch {
	case errors.Is(err, index.ErrInvalidName):
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	case errors.Is(err, index.ErrRenameConflict):
		return s.sendError(msg.ID, codeRequestFailed, err.Error()+" (rename is text-based and cannot prove the result unambiguous)")
	case err != nil:
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	}
	if len(edits) == 0 {
		return s.sendResponse(msg.ID, nil)
	}
	changes := make(map[string][]textEdit)
	for _, e := range edits {
		uri := pathToURI(e.FilePath)
		changes[uri] = append(changes[uri], textEdit{Range: toLSPRange(e.Range), NewText: e.NewText})
	}
	return s.sendResponse(msg.ID, workspaceEdit{Changes: changes})
}

func (s *Server) handleDocumentSymbol(msg *rpcMessage) error {
	var params documentSymbolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	sess, path, ok := s.sessionFor(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, []symbolInformation{})
	}
	return s.sendResponse(msg.ID, toSymbolInformation(sess.DocumentSymbols(s.ctx, path)))
}

func (s *Server) handleWorkspaceSymbol(msg *rpcMessage) error {
	var params workspaceSymbolParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	sessions := s.sessions.Sessions()
	if len(sessions) == 0 {
		s.mu.Lock()
		root := s.workspaceRoot
		s.mu.Unlock()
		if root != "" {
			if sess, ok := s.sessions.SessionFor(filepath.Join(root, project.ManifestName)); ok {
				sessions = append(sessions, sess)
			}
		}
	}
	var out []symbolInformation
	for _, sess := range sessions {
		syms, err := sess.WorkspaceSymbols(s.ctx, params.Query)
		if err != nil {
			s.log.Warn("workspace symbols failed", slog.String("root", sess.Root()), slog.String("error", err.Error()))
			continue
		}
		out = append(out, toSymbolInformation(syms)...)
	}
	if out == nil {
		out = []symbolInformation{}
	}
	return s.sendResponse(msg.ID, out)
}

// handleCompletion completes import paths inside an import string literal.
// Other positions get no items.
func (s *Server) handleCompletion(msg *rpcMessage) error {
	var params completionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	empty := completionList{Items: []completionItem{}}
	sess, path, ok := s.sessionFor(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, empty)
	}
	text, ok := s.docs.Content(path)
	if !ok {
		return s.sendResponse(msg.ID, empty)
	}
	partial, ok := importPrefixAt(text, params.Position)
	if !ok {
		return s.sendResponse(msg.ID, empty)
	}
	cands := sess.CompletionCandidates(s.ctx, partial)
	items := make([]completionItem, 0, len(cands))
	for _, c := range cands {
		items = append(items, completionItem{Label: c, Kind: completionItemKindFile, Detail: "import path"})
	}
	return s.sendResponse(msg.ID, completionList{Items: items})
}

// importPrefixAt returns the text between an import statement's opening
// quote and the cursor.
func importPrefixAt(text string, pos position) (string, bool) {
	offset := offsetForPosition(text, pos)
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	line := text[lineStart:offset]
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "import") {
		return "", false
	}
	q := strings.LastIndexAny(line, "\"'")
	if q < 0 || strings.Count(line, line[q:q+1])%2 == 0 {
		return "", false
	}
	return line[q+1:], true
}
