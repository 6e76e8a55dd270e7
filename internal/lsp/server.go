// Package lsp serves the Language Server Protocol over stdio for Foundry
// projects. Requests are dispatched to per-project workspace sessions;
// document events drive a docstore that schedules forge analysis off the
// request loop.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"forgelsp/internal/diag"
	"forgelsp/internal/diagcache"
	"forgelsp/internal/docstore"
	"forgelsp/internal/forge"
	"forgelsp/internal/index"
	"forgelsp/internal/workspace"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	Runner    *forge.Runner
	Debounce  time.Duration
	DiskCache *index.DiskCache
	Jobs      int
	Watch     bool
	Version   string
	Logger    *slog.Logger
}

// Server handles stdio JSON-RPC for forgelsp.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	log    *slog.Logger

	runner   *forge.Runner
	docs     *docstore.Store
	sessions *workspace.Registry
	version  string

	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.Mutex
	workspaceRoot     string
	shutdownRequested bool
	published         map[string]struct{}
	traceLSP          bool

	unavailableOnce sync.Once
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = forge.New(forge.Options{Logger: log})
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		in:        bufio.NewReader(in),
		out:       bufio.NewWriter(out),
		log:       log,
		runner:    runner,
		version:   opts.Version,
		ctx:       ctx,
		cancel:    cancel,
		published: make(map[string]struct{}),
	}
	s.docs = docstore.New(ctx, docstore.Options{
		Debounce: opts.Debounce,
		Analyze:  s.analyze,
		Publish:  s.publishDiagnostics,
		Logger:   log,
	})
	s.sessions = workspace.NewRegistry(ctx, workspace.Options{
		Runner:    runner,
		Overlay:   s.docs,
		DiskCache: opts.DiskCache,
		Jobs:      opts.Jobs,
		Watch:     opts.Watch,
		Logger:    log,
	})
	return s
}

// Run serves LSP requests until exit or end of input.
func (s *Server) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer s.teardown()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn("failed to parse message", slog.String("error", err.Error()))
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) teardown() {
	s.cancel()
	s.docs.CloseAll()
	s.docs.Wait()
	s.sessions.Close()
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/definition":
		return s.handleDefinition(msg)
	case "textDocument/references":
		return s.handleReferences(msg)
	case "textDocument/prepareRename":
		return s.handlePrepareRename(msg)
	case "textDocument/rename":
		return s.handleRename(msg)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(msg)
	case "workspace/symbol":
		return s.handleWorkspaceSymbol(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()
	s.sessions.SetFallbackRoot(root)
	s.applySettings(params.InitializationOptions)

	go s.probeTool()

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			DefinitionProvider:      true,
			ReferencesProvider:      true,
			RenameProvider:          &renameOptions{PrepareProvider: true},
			DocumentSymbolProvider:  true,
			WorkspaceSymbolProvider: true,
			CompletionProvider: &completionOptions{
				TriggerCharacters: []string{"/", "\"", "'"},
			},
		},
		ServerInfo: &serverInfo{Name: "forgelsp", Version: s.version},
	}
	return s.sendResponse(msg.ID, result)
}

// probeTool detects the forge version so a missing executable is reported
// once, at startup.
func (s *Server) probeTool() {
	if _, err := s.runner.DetectVersion(s.ctx); err != nil {
		s.reportToolError(err)
	}
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.docs.CloseAll()
	s.clearPublishedDiagnostics()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.docs.Open(uri, uriToPath(uri), params.TextDocument.Text, params.TextDocument.Version)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	doc, ok := s.docs.Get(uri)
	if !ok {
		s.log.Debug("didChange for unopened document", slog.String("uri", uri))
		return nil
	}
	text := applyChanges(doc.Content, params.ContentChanges)
	if err := s.docs.Change(uri, text, params.TextDocument.Version); err != nil {
		s.log.Warn("didChange rejected", slog.String("uri", uri), slog.String("error", err.Error()))
	}
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	if err := s.docs.Save(uri, params.Text); err != nil {
		s.log.Debug("didSave for unopened document", slog.String("uri", uri))
	}
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.docs.Close(uri)
	s.mu.Lock()
	_, hadDiagnostics := s.published[uri]
	delete(s.published, uri)
	s.mu.Unlock()
	if hadDiagnostics {
		if err := s.sendPublish(uri, nil, nil); err != nil {
			s.log.Warn("failed to clear diagnostics", slog.String("error", err.Error()))
		}
	}
	return nil
}

// sessionFor returns the project session for a document URI.
func (s *Server) sessionFor(uri string) (*workspace.Session, string, bool) {
	path := uriToPath(canonicalURI(uri))
	if path == "" {
		return nil, "", false
	}
	sess, ok := s.sessions.SessionFor(path)
	return sess, path, ok
}

// analyze is the docstore's analysis hook.
func (s *Server) analyze(ctx context.Context, path string, trigger diagcache.Trigger) ([]diag.Diagnostic, error) {
	sess, ok := s.sessions.SessionFor(path)
	if !ok {
		return nil, nil
	}
	diags, err := sess.Diagnostics(ctx, path, trigger)
	if err != nil {
		s.reportToolError(err)
	}
	return diags, err
}

// reportToolError tells the user once per session that forge cannot run.
func (s *Server) reportToolError(err error) {
	if !errors.Is(err, forge.ErrToolUnavailable) {
		return
	}
	s.unavailableOnce.Do(func() {
		msg := "forgelsp: forge executable not found (" + s.runner.Path() + "); diagnostics are disabled. Navigation still works."
		if sendErr := s.sendNotification("window/showMessage", showMessageParams{Type: messageTypeError, Message: msg}); sendErr != nil {
			s.log.Warn("failed to show message", slog.String("error", sendErr.Error()))
		}
	})
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(msg string, attrs ...any) {
	s.mu.Lock()
	trace := s.traceLSP
	s.mu.Unlock()
	if trace {
		s.log.Info(msg, attrs...)
	}
}
