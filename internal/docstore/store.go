// Package docstore tracks open editor documents and schedules their
// analysis.
//
// Each document moves Closed -> Open -> Changed* -> Saved/Changed -> Closed.
// Opening analyzes at once, changes are debounced, saves cancel the pending
// timer and analyze immediately without the tool cache. A result is
// published only while its document is still open at the same version and
// no newer result for that document has been published.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"forgelsp/internal/diag"
	"forgelsp/internal/diagcache"
)

// DefaultDebounce is the delay between the last change and its analysis.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrNotOpen is returned for events on a document that is not open.
	ErrNotOpen = errors.New("document not open")
	// ErrStaleVersion is returned when a change does not increase the
	// document version.
	ErrStaleVersion = errors.New("document version did not increase")
)

// AnalyzeFunc computes diagnostics for path.
type AnalyzeFunc func(ctx context.Context, path string, trigger diagcache.Trigger) ([]diag.Diagnostic, error)

// PublishFunc delivers diagnostics computed for a document version.
type PublishFunc func(uri string, version int, diags []diag.Diagnostic)

// Options configures a Store.
type Options struct {
	Debounce time.Duration
	Analyze  AnalyzeFunc
	Publish  PublishFunc
	Logger   *slog.Logger
}

// Document is a copy of an open document's state.
type Document struct {
	URI     string
	Path    string
	Version int
	Content string
	Pending bool
}

type document struct {
	Document
	timer         *time.Timer
	seq           uint64
	publishedSeq  uint64
	inFlightCount int
}

// plan identifies one scheduled analysis.
type plan struct {
	doc     *document
	uri     string
	path    string
	version int
	seq     uint64
	trigger diagcache.Trigger
}

// Store is safe for concurrent use.
type Store struct {
	ctx     context.Context
	analyze AnalyzeFunc
	publish PublishFunc
	log     *slog.Logger

	mu       sync.Mutex
	debounce time.Duration
	docs     map[string]*document
	byPath   map[string]string
	trace    bool

	publishMu sync.Mutex
	wg        sync.WaitGroup
}

// New creates a Store. Analyses run under ctx.
func New(ctx context.Context, opts Options) *Store {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		ctx:      ctx,
		analyze:  opts.Analyze,
		publish:  opts.Publish,
		log:      log,
		debounce: debounce,
		docs:     make(map[string]*document),
		byPath:   make(map[string]string),
	}
}

// SetDebounce changes the delay for changes scheduled from now on.
func (s *Store) SetDebounce(d time.Duration) {
	if d <= 0 {
		d = DefaultDebounce
	}
	s.mu.Lock()
	s.debounce = d
	s.mu.Unlock()
}

// SetTrace toggles per-analysis debug logging.
func (s *Store) SetTrace(on bool) {
	s.mu.Lock()
	s.trace = on
	s.mu.Unlock()
}

func (s *Store) tracef(msg string, p plan, attrs ...any) {
	s.mu.Lock()
	on := s.trace
	s.mu.Unlock()
	if !on {
		return
	}
	s.log.Info(msg, append([]any{
		slog.String("uri", p.uri),
		slog.Int("version", p.version),
		slog.Uint64("seq", p.seq),
		slog.String("trigger", p.trigger.String()),
	}, attrs...)...)
}

// Open starts tracking a document and analyzes it immediately.
func (s *Store) Open(uri, path, content string, version int) {
	s.mu.Lock()
	if old, ok := s.docs[uri]; ok && old.timer != nil {
		old.timer.Stop()
	}
	doc := &document{Document: Document{URI: uri, Path: path, Version: version, Content: content}}
	s.docs[uri] = doc
	if path != "" {
		s.byPath[path] = uri
	}
	p := s.nextPlanLocked(doc, diagcache.OnOpen)
	s.mu.Unlock()
	s.start(p)
}

// Change replaces a document's content and restarts its debounce timer.
func (s *Store) Change(uri, content string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}
	if version <= doc.Version {
		return fmt.Errorf("%w: %s: %d <= %d", ErrStaleVersion, uri, version, doc.Version)
	}
	doc.Content = content
	doc.Version = version
	if doc.timer != nil {
		doc.timer.Stop()
		doc.timer = nil
	}
	p := s.nextPlanLocked(doc, diagcache.OnChange)
	doc.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		cur, ok := s.docs[uri]
		current := ok && cur == doc && cur.seq == p.seq
		if current {
			cur.timer = nil
		}
		s.mu.Unlock()
		if current {
			s.start(p)
		}
	})
	return nil
}

// Save cancels any pending change analysis and analyzes from scratch now.
// A non-nil text replaces the buffer content without bumping the version.
func (s *Store) Save(uri string, text *string) error {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}
	if doc.timer != nil {
		doc.timer.Stop()
		doc.timer = nil
	}
	if text != nil {
		doc.Content = *text
	}
	p := s.nextPlanLocked(doc, diagcache.OnSave)
	s.mu.Unlock()
	s.start(p)
	return nil
}

// Close forgets a document and its pending timer. In-flight results for it
// are discarded.
func (s *Store) Close(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return false
	}
	if doc.timer != nil {
		doc.timer.Stop()
	}
	delete(s.docs, uri)
	if s.byPath[doc.Path] == uri {
		delete(s.byPath, doc.Path)
	}
	return true
}

// Get returns a copy of the document state.
func (s *Store) Get(uri string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return Document{}, false
	}
	return doc.Document, true
}

// URIs lists open documents, sorted.
func (s *Store) URIs() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	s.mu.Unlock()
	slices.Sort(out)
	return out
}

// Content returns the unsaved buffer for a file path.
func (s *Store) Content(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uri, ok := s.byPath[path]
	if !ok {
		return "", false
	}
	return s.docs[uri].Content, true
}

// Paths lists the file paths of open documents.
func (s *Store) Paths() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		out = append(out, p)
	}
	s.mu.Unlock()
	slices.Sort(out)
	return out
}

// CloseAll stops every pending timer and forgets all documents.
func (s *Store) CloseAll() {
	s.mu.Lock()
	for _, doc := range s.docs {
		if doc.timer != nil {
			doc.timer.Stop()
		}
	}
	s.docs = make(map[string]*document)
	s.byPath = make(map[string]string)
	s.mu.Unlock()
}

// Wait blocks until in-flight analyses finish.
func (s *Store) Wait() { s.wg.Wait() }

func (s *Store) nextPlanLocked(doc *document, trigger diagcache.Trigger) plan {
	doc.seq++
	doc.Pending = true
	return plan{doc: doc, uri: doc.URI, path: doc.Path, version: doc.Version, seq: doc.seq, trigger: trigger}
}

func (s *Store) start(p plan) {
	s.mu.Lock()
	if doc, ok := s.docs[p.uri]; ok && doc == p.doc {
		doc.inFlightCount++
	}
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(p)
	}()
}

func (s *Store) run(p plan) {
	s.tracef("analysis start", p)
	var diags []diag.Diagnostic
	var err error
	if s.analyze != nil && p.path != "" {
		diags, err = s.analyze(s.ctx, p.path, p.trigger)
	}
	if err != nil {
		s.log.Debug("analysis error", slog.String("uri", p.uri), slog.String("trigger", p.trigger.String()), slog.String("error", err.Error()))
	}
	s.tracef("analysis done", p, slog.Int("diagnostics", len(diags)), slog.Bool("failed", err != nil))

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	ok, reason := s.accept(p)
	if !ok {
		s.tracef("analysis discard", p, slog.String("reason", reason))
		return
	}
	if s.publish != nil {
		s.publish(p.uri, p.version, diags)
	}
	s.tracef("publish diagnostics", p, slog.Int("diagnostics", len(diags)))
}

// accept applies the version gate and records the result as published.
func (s *Store) accept(p plan) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[p.uri]
	// a reopened document is a new incarnation with its own counters
	ok = ok && doc == p.doc
	if ok {
		doc.inFlightCount--
		doc.Pending = doc.timer != nil || doc.inFlightCount > 0
	}
	switch {
	case s.ctx.Err() != nil:
		return false, "canceled"
	case !ok:
		return false, "closed"
	case doc.Version != p.version:
		return false, fmt.Sprintf("version %d superseded by %d", p.version, doc.Version)
	case p.seq <= doc.publishedSeq:
		return false, "newer result already published"
	}
	doc.publishedSeq = p.seq
	return true, ""
}
