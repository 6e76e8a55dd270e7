package diagcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/diag"
	"forgelsp/internal/forge"
)

type call struct {
	file     string
	useCache bool
}

// fakeAnalyzer mimics a tool whose warm build cache hides the SPDX warning.
type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []call
	err   error
}

var (
	unusedVar = diag.Diagnostic{Severity: diag.SevWarning, Source: diag.SourceCompile, Code: "2072", Message: "Unused local variable."}
	spdx      = diag.Diagnostic{Severity: diag.SevWarning, Source: diag.SourceCompile, Code: "1878", Message: "SPDX license identifier not provided in source file."}
)

func (f *fakeAnalyzer) Analyze(_ context.Context, _, file string, useCache bool) (forge.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{file, useCache})
	f.mu.Unlock()
	if f.err != nil {
		return forge.Result{Diagnostics: []diag.Diagnostic{unusedVar}}, f.err
	}
	d1 := []diag.Diagnostic{unusedVar}
	if useCache {
		return forge.Result{Diagnostics: d1}, nil
	}
	return forge.Result{Diagnostics: append(d1, spdx)}, nil
}

func (f *fakeAnalyzer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func setup(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	file := filepath.Join(root, "src", "Counter.sol")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("contract Counter {}\n"), 0o600))
	return root, file
}

func TestChangeThenSaveRevealsFreshWarnings(t *testing.T) {
	root, file := setup(t)
	fa := &fakeAnalyzer{}
	c := New(root, fa, nil)
	ctx := context.Background()

	d1, err := c.GetOrCompute(ctx, file, OnChange)
	require.NoError(t, err)
	assert.Equal(t, []diag.Diagnostic{unusedVar}, d1)

	d2, err := c.GetOrCompute(ctx, file, OnSave)
	require.NoError(t, err)
	assert.Equal(t, []diag.Diagnostic{unusedVar, spdx}, d2)

	require.Equal(t, []call{{file, true}, {file, false}}, fa.calls)
	e, ok := c.Get(file)
	require.True(t, ok)
	assert.Equal(t, OnSave, e.GeneratedFor)
}

func TestChangeReusesEntryWhileFingerprintMatches(t *testing.T) {
	root, file := setup(t)
	fa := &fakeAnalyzer{}
	c := New(root, fa, nil)
	ctx := context.Background()

	_, err := c.GetOrCompute(ctx, file, OnOpen)
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, file, OnChange)
	require.NoError(t, err)
	assert.Equal(t, 1, fa.count())

	require.NoError(t, os.WriteFile(file, []byte("contract Counter { uint x; }\n"), 0o600))
	_, err = c.GetOrCompute(ctx, file, OnChange)
	require.NoError(t, err)
	assert.Equal(t, 2, fa.count())
}

func TestSaveAlwaysRecomputes(t *testing.T) {
	root, file := setup(t)
	fa := &fakeAnalyzer{}
	c := New(root, fa, nil)
	ctx := context.Background()
	for range 3 {
		_, err := c.GetOrCompute(ctx, file, OnSave)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, fa.count())
	assert.Equal(t, 1, c.Len())
}

func TestOutsideWorkspaceIsEmpty(t *testing.T) {
	root, _ := setup(t)
	fa := &fakeAnalyzer{}
	c := New(root, fa, nil)
	other := filepath.Join(t.TempDir(), "Other.sol")
	require.NoError(t, os.WriteFile(other, []byte("contract Other {}\n"), 0o600))

	diags, err := c.GetOrCompute(context.Background(), other, OnSave)
	require.NoError(t, err)
	assert.NotNil(t, diags)
	assert.Empty(t, diags)
	assert.Zero(t, fa.count())
}

func TestFailureKeepsPreviousEntry(t *testing.T) {
	root, file := setup(t)
	fa := &fakeAnalyzer{}
	c := New(root, fa, nil)
	ctx := context.Background()
	_, err := c.GetOrCompute(ctx, file, OnSave)
	require.NoError(t, err)

	fa.err = forge.ErrToolTimeout
	diags, err := c.GetOrCompute(ctx, file, OnSave)
	require.True(t, errors.Is(err, forge.ErrToolTimeout))
	assert.Equal(t, []diag.Diagnostic{unusedVar}, diags)

	e, ok := c.Get(file)
	require.True(t, ok)
	assert.Len(t, e.Diagnostics, 2)
}

func TestFingerprint(t *testing.T) {
	_, file := setup(t)
	a := Fingerprint(file)
	assert.Contains(t, a, "sha256:")
	require.NoError(t, os.WriteFile(file, []byte("changed"), 0o600))
	assert.NotEqual(t, a, Fingerprint(file))
	assert.Empty(t, Fingerprint(file+".missing"))
}
