package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/project"
)

func newProject(t *testing.T) *project.Manifest {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, project.ManifestName), []byte("[profile.default]\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	m, err := project.LoadManifest(filepath.Join(root, project.ManifestName))
	require.NoError(t, err)
	return m
}

func TestClassify(t *testing.T) {
	m := newProject(t)
	w := &Watcher{m: m}
	cases := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{m.Path, KindManifest, true},
		{m.RemappingsFile(), KindRemappings, true},
		{m.FilesCache(), KindArtifacts, true},
		{filepath.Join(m.BuildInfoDir(), "abc.json"), KindArtifacts, true},
		{filepath.Join(m.Src, "deep", "A.sol"), KindSource, true},
		{filepath.Join(m.Src, "notes.md"), 0, false},
		{filepath.Join(m.Root, "lib", "x", "A.sol"), 0, false},
		{filepath.Join(m.Out, "A.sol", "A.json"), 0, false},
	}
	for _, tc := range cases {
		kind, ok := w.classify(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		if tc.ok {
			assert.Equal(t, tc.kind, kind, tc.path)
		}
	}
}

func TestDedupeMergesOps(t *testing.T) {
	out := dedupe([]Change{
		{Path: "/b.sol", Kind: KindSource, Op: fsnotify.Write},
		{Path: "/a.sol", Kind: KindSource, Op: fsnotify.Create},
		{Path: "/b.sol", Kind: KindSource, Op: fsnotify.Remove},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "/a.sol", out[0].Path)
	assert.True(t, out[1].Op.Has(fsnotify.Write))
	assert.True(t, out[1].Op.Has(fsnotify.Remove))
}

func TestInvalidates(t *testing.T) {
	assert.False(t, Invalidates([]Change{{Kind: KindSource, Op: fsnotify.Write}}))
	assert.True(t, Invalidates([]Change{{Kind: KindSource, Op: fsnotify.Create}}))
	assert.True(t, Invalidates([]Change{{Kind: KindRemappings, Op: fsnotify.Write}}))
}

func TestWatcherReportsRemappingsChange(t *testing.T) {
	m := newProject(t)
	got := make(chan []Change, 4)
	w, err := New(m, func(b []Change) { got <- b }, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(m.RemappingsFile(), []byte("a/=lib/a/\n"), 0o600))

	select {
	case batch := <-got:
		require.NotEmpty(t, batch)
		assert.Equal(t, KindRemappings, batch[0].Kind)
		assert.True(t, Invalidates(batch))
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherPicksUpNewSourceDirs(t *testing.T) {
	m := newProject(t)
	got := make(chan []Change, 8)
	w, err := New(m, func(b []Change) { got <- b }, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	sub := filepath.Join(m.Src, "tokens")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the event loop time to register the new directory.
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(sub, "Token.sol")
	require.NoError(t, os.WriteFile(target, []byte("contract Token {}\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-got:
			for _, c := range batch {
				if c.Path == target {
					assert.Equal(t, KindSource, c.Kind)
					return
				}
			}
		case <-deadline:
			t.Fatal("new source file not reported")
		}
	}
}
