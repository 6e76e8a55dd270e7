package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/diag"
	"forgelsp/internal/diagcache"
	"forgelsp/internal/forge"
	"forgelsp/internal/index"
	"forgelsp/internal/source"
)

const counterSol = "pragma solidity ^0.8.0;\ncontract Counter { uint256 public number; function increment() public { number++; } }\n"

const scriptSol = `pragma solidity ^0.8.0;
import "../src/Counter.sol";
contract Deploy {
    function run() public {
        Counter counter = new Counter();
        counter.increment();
    }
}
`

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

// fakeForge answers like forge: a fresh compile also reports the missing
// SPDX identifier that a warm build cache hides.
func fakeForge(t *testing.T) forge.ExecFunc {
	return func(_ context.Context, dir, _ string, args ...string) (forge.Output, error) {
		switch args[0] {
		case "compile":
			file := args[1]
			records := []map[string]any{{
				"sourceLocation": map[string]any{"file": file, "start": 24, "end": 40},
				"severity":       "warning",
				"errorCode":      "2072",
				"message":        "Unused local variable.",
			}}
			if strings.Contains(strings.Join(args, " "), "--no-cache") {
				records = append(records, map[string]any{
					"sourceLocation": map[string]any{"file": file, "start": 0, "end": 6},
					"severity":       "warning",
					"errorCode":      "1878",
					"message":        "SPDX license identifier not provided in source file.",
				})
			}
			raw, err := json.Marshal(map[string]any{"errors": records})
			require.NoError(t, err)
			return forge.Output{Stdout: raw, ExitCode: 0}, nil
		case "remappings":
			return forge.Output{Stdout: []byte("forge-std/=lib/forge-std/src/\n")}, nil
		}
		return forge.Output{ExitCode: 2}, nil
	}
}

type fixture struct {
	root string
	reg  *Registry
}

func newFixture(t *testing.T, watchFiles bool) *fixture {
	t.Helper()
	root := t.TempDir()
	write(t, filepath.Join(root, "foundry.toml"), "[profile.default]\nsrc = \"src\"\nlibs = [\"lib\"]\n")
	write(t, filepath.Join(root, "src", "Counter.sol"), counterSol)
	write(t, filepath.Join(root, "script", "Deploy.s.sol"), scriptSol)
	write(t, filepath.Join(root, "lib", "forge-std", "src", "Test.sol"), "abstract contract Test {}\n")

	runner := forge.New(forge.Options{Exec: fakeForge(t), Lint: forge.LintNever})
	reg := NewRegistry(context.Background(), Options{Runner: runner, Watch: watchFiles})
	t.Cleanup(reg.Close)
	return &fixture{root: root, reg: reg}
}

func (f *fixture) path(rel string) string { return filepath.Join(f.root, filepath.FromSlash(rel)) }

func (f *fixture) session(t *testing.T) *Session {
	t.Helper()
	s, ok := f.reg.SessionFor(f.path("src/Counter.sol"))
	require.True(t, ok)
	return s
}

func TestRegistryReusesSessionPerRoot(t *testing.T) {
	f := newFixture(t, false)
	a := f.session(t)
	b, ok := f.reg.SessionFor(f.path("script/Deploy.s.sol"))
	require.True(t, ok)
	assert.Same(t, a, b)
	assert.Equal(t, f.root, a.Root())

	_, ok = f.reg.SessionFor(filepath.Join(t.TempDir(), "Loose.sol"))
	assert.False(t, ok)

	other := newFixture(t, false)
	c := other.session(t)
	assert.NotSame(t, a, c)
}

func TestFallbackRootWithoutManifest(t *testing.T) {
	f := newFixture(t, false)
	loose := t.TempDir()
	write(t, filepath.Join(loose, "src", "A.sol"), "contract A {}\n")
	f.reg.SetFallbackRoot(loose)
	s, ok := f.reg.SessionFor(filepath.Join(loose, "src", "A.sol"))
	require.True(t, ok)
	assert.Equal(t, loose, s.Root())
	assert.Len(t, s.DocumentSymbols(context.Background(), filepath.Join(loose, "src", "A.sol")), 1)
}

func TestDiagnosticsTriggerPolicy(t *testing.T) {
	f := newFixture(t, false)
	s := f.session(t)
	ctx := context.Background()
	file := f.path("src/Counter.sol")

	d1, err := s.Diagnostics(ctx, file, diagcache.OnChange)
	require.NoError(t, err)
	require.Len(t, d1, 1)
	assert.Equal(t, "2072", d1[0].Code)

	d2, err := s.Diagnostics(ctx, file, diagcache.OnSave)
	require.NoError(t, err)
	require.Len(t, d2, 2)
	assert.Equal(t, d1[0], d2[0])
	assert.Equal(t, diag.SourceCompile, d2[1].Source)

	assert.Len(t, s.CachedDiagnostics(file), 2)
}

func TestOutsideProjectIsInert(t *testing.T) {
	f := newFixture(t, false)
	s := f.session(t)
	ctx := context.Background()
	outside := filepath.Join(t.TempDir(), "X.sol")
	write(t, outside, "contract X {}\n")

	diags, err := s.Diagnostics(ctx, outside, diagcache.OnSave)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Empty(t, s.DocumentSymbols(ctx, outside))
	locs, err := s.Definition(ctx, outside, source.Position{Line: 0, Character: 10})
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestNavigation(t *testing.T) {
	f := newFixture(t, false)
	s := f.session(t)
	ctx := context.Background()
	deploy := f.path("script/Deploy.s.sol")

	// cursor inside "../src/Counter.sol"
	locs, err := s.Definition(ctx, deploy, source.Position{Line: 1, Character: 12})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, f.path("src/Counter.sol"), locs[0].FilePath)

	// cursor on "Counter" in "new Counter()"
	locs, err = s.Definition(ctx, deploy, source.Position{Line: 4, Character: 34})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, f.path("src/Counter.sol"), locs[0].FilePath)
	assert.Equal(t, 1, locs[0].Range.Start.Line)

	refs, err := s.References(ctx, deploy, source.Position{Line: 5, Character: 18})
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	name, _, ok, err := s.PrepareRename(ctx, deploy, source.Position{Line: 4, Character: 8})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Counter", name)
	_, _, ok, err = s.PrepareRename(ctx, deploy, source.Position{Line: 0, Character: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	edits, err := s.Rename(ctx, deploy, source.Position{Line: 4, Character: 8}, "Tally")
	require.NoError(t, err)
	assert.Len(t, edits, 3)

	write(t, f.path("src/Tally.sol"), "contract Tally {}\n")
	s.Index().MarkStale()
	_, err = s.Rename(ctx, deploy, source.Position{Line: 4, Character: 8}, "Tally")
	require.ErrorIs(t, err, index.ErrRenameConflict)

	got, err := s.ResolveImport(ctx, "forge-std/Test.sol", deploy)
	require.NoError(t, err)
	assert.Equal(t, f.path("lib/forge-std/src/Test.sol"), got)
}

func TestWatcherMarksIndexStale(t *testing.T) {
	f := newFixture(t, true)
	s := f.session(t)
	ctx := context.Background()
	write(t, f.path("lib/solady/src/utils/LibString.sol"), "library LibString {}\n")

	_, err := s.ResolveImport(ctx, "solady-utils/LibString.sol", "")
	require.ErrorIs(t, err, index.ErrImportNotFound)

	write(t, f.path("remappings.txt"), "solady-utils/=lib/solady/src/utils/\n")
	require.Eventually(t, func() bool {
		p, err := s.ResolveImport(ctx, "solady-utils/LibString.sol", "")
		return err == nil && p == f.path("lib/solady/src/utils/LibString.sol")
	}, 5*time.Second, 20*time.Millisecond)
}
