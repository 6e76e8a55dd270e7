package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/diag"
	"forgelsp/internal/diagcache"
)

type published struct {
	uri     string
	version int
	diags   int
}

type recorder struct {
	mu       sync.Mutex
	triggers []diagcache.Trigger
	out      []published
}

func (r *recorder) analyze(_ context.Context, _ string, trigger diagcache.Trigger) ([]diag.Diagnostic, error) {
	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	r.mu.Unlock()
	return []diag.Diagnostic{{Message: trigger.String()}}, nil
}

func (r *recorder) publish(uri string, version int, diags []diag.Diagnostic) {
	r.mu.Lock()
	r.out = append(r.out, published{uri, version, len(diags)})
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]diagcache.Trigger, []published) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]diagcache.Trigger(nil), r.triggers...), append([]published(nil), r.out...)
}

func newStore(t *testing.T, r *recorder, debounce time.Duration) *Store {
	t.Helper()
	s := New(context.Background(), Options{Debounce: debounce, Analyze: r.analyze, Publish: r.publish})
	t.Cleanup(func() {
		s.CloseAll()
		s.Wait()
	})
	return s
}

func TestOnlyLatestChangeIsAnalyzed(t *testing.T) {
	r := &recorder{}
	s := newStore(t, r, 50*time.Millisecond)
	s.Open("file:///p/A.sol", "/p/A.sol", "v0", 0)
	s.Wait()

	require.NoError(t, s.Change("file:///p/A.sol", "v1", 1))
	require.NoError(t, s.Change("file:///p/A.sol", "v2", 2))
	require.Eventually(t, func() bool {
		_, out := r.snapshot()
		return len(out) == 2
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	s.Wait()

	triggers, out := r.snapshot()
	assert.Equal(t, []diagcache.Trigger{diagcache.OnOpen, diagcache.OnChange}, triggers)
	assert.Equal(t, []published{{"file:///p/A.sol", 0, 1}, {"file:///p/A.sol", 2, 1}}, out)
}

func TestChangeRequiresIncreasingVersion(t *testing.T) {
	r := &recorder{}
	s := newStore(t, r, time.Hour)
	s.Open("file:///p/A.sol", "/p/A.sol", "", 3)
	require.ErrorIs(t, s.Change("file:///p/A.sol", "x", 3), ErrStaleVersion)
	require.ErrorIs(t, s.Change("file:///p/A.sol", "x", 2), ErrStaleVersion)
	require.ErrorIs(t, s.Change("file:///p/B.sol", "x", 9), ErrNotOpen)
	require.NoError(t, s.Change("file:///p/A.sol", "x", 4))
	doc, ok := s.Get("file:///p/A.sol")
	require.True(t, ok)
	assert.Equal(t, 4, doc.Version)
	assert.True(t, doc.Pending)
}

func TestSaveCancelsPendingChange(t *testing.T) {
	r := &recorder{}
	s := newStore(t, r, 200*time.Millisecond)
	s.Open("file:///p/A.sol", "/p/A.sol", "a", 1)
	s.Wait()
	require.NoError(t, s.Change("file:///p/A.sol", "b", 2))
	require.NoError(t, s.Save("file:///p/A.sol", nil))
	s.Wait()
	time.Sleep(300 * time.Millisecond)
	s.Wait()

	triggers, out := r.snapshot()
	assert.Equal(t, []diagcache.Trigger{diagcache.OnOpen, diagcache.OnSave}, triggers)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[1].version)
}

// blockingAnalyzer holds every analysis until released.
type blockingAnalyzer struct {
	started chan int
	release chan struct{}
}

func (b *blockingAnalyzer) analyze(ctx context.Context, _ string, _ diagcache.Trigger) ([]diag.Diagnostic, error) {
	b.started <- 1
	<-b.release
	return nil, nil
}

func TestResultForSupersededVersionIsDiscarded(t *testing.T) {
	r := &recorder{}
	b := &blockingAnalyzer{started: make(chan int, 4), release: make(chan struct{})}
	s := New(context.Background(), Options{Debounce: time.Hour, Analyze: b.analyze, Publish: r.publish})
	s.Open("file:///p/A.sol", "/p/A.sol", "a", 1)
	<-b.started
	require.NoError(t, s.Change("file:///p/A.sol", "b", 2))
	close(b.release)
	s.Wait()

	_, out := r.snapshot()
	assert.Empty(t, out)
	s.CloseAll()
}

func TestCloseDiscardsInFlight(t *testing.T) {
	r := &recorder{}
	b := &blockingAnalyzer{started: make(chan int, 4), release: make(chan struct{})}
	s := New(context.Background(), Options{Analyze: b.analyze, Publish: r.publish})
	s.Open("file:///p/A.sol", "/p/A.sol", "a", 1)
	<-b.started
	assert.True(t, s.Close("file:///p/A.sol"))
	assert.False(t, s.Close("file:///p/A.sol"))
	close(b.release)
	s.Wait()

	_, out := r.snapshot()
	assert.Empty(t, out)
}

// stagedAnalyzer releases each call on its own gate; call n returns n+1
// diagnostics.
type stagedAnalyzer struct {
	mu      sync.Mutex
	calls   int
	started chan int
	gates   []chan struct{}
}

func (a *stagedAnalyzer) analyze(context.Context, string, diagcache.Trigger) ([]diag.Diagnostic, error) {
	a.mu.Lock()
	n := a.calls
	a.calls++
	a.mu.Unlock()
	a.started <- n
	<-a.gates[n]
	return make([]diag.Diagnostic, n+1), nil
}

func TestReopenDiscardsResultOfClosedDocument(t *testing.T) {
	r := &recorder{}
	a := &stagedAnalyzer{started: make(chan int, 2), gates: []chan struct{}{make(chan struct{}), make(chan struct{})}}
	s := New(context.Background(), Options{Analyze: a.analyze, Publish: r.publish})
	s.Open("file:///p/A.sol", "/p/A.sol", "old", 1)
	require.Equal(t, 0, <-a.started)
	require.True(t, s.Close("file:///p/A.sol"))
	s.Open("file:///p/A.sol", "/p/A.sol", "new", 1)
	require.Equal(t, 1, <-a.started)

	close(a.gates[0])
	close(a.gates[1])
	s.Wait()

	_, out := r.snapshot()
	assert.Equal(t, []published{{"file:///p/A.sol", 1, 2}}, out)
	doc, ok := s.Get("file:///p/A.sol")
	require.True(t, ok)
	assert.False(t, doc.Pending)
	s.CloseAll()
}

func TestOverlay(t *testing.T) {
	r := &recorder{}
	s := newStore(t, r, time.Hour)
	s.Open("file:///p/B.sol", "/p/B.sol", "b", 1)
	s.Open("file:///p/A.sol", "/p/A.sol", "a", 1)
	got, ok := s.Content("/p/A.sol")
	require.True(t, ok)
	assert.Equal(t, "a", got)
	assert.Equal(t, []string{"/p/A.sol", "/p/B.sol"}, s.Paths())
	assert.Equal(t, []string{"file:///p/A.sol", "file:///p/B.sol"}, s.URIs())

	s.Close("file:///p/A.sol")
	_, ok = s.Content("/p/A.sol")
	assert.False(t, ok)
}
