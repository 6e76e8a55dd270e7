package lsp

import (
	"path/filepath"
	"testing"
)

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir with space", "Token.sol")
	uri := pathToURI(path)
	if got := uriToPath(uri); got != path {
		t.Fatalf("expected %q, got %q", path, got)
	}
	if canonicalURI(uri) != uri {
		t.Fatalf("canonical form changed: %q", canonicalURI(uri))
	}
	if canonicalURI("untitled:Untitled-1") != "" {
		t.Fatal("non-file URIs must be rejected")
	}
}

func TestURIToPathEscapes(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "a b#c.sol")
	got := uriToPath("file://" + filepath.ToSlash(dir) + "/a%20b%23c.sol")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if uriToPath("git:/repo/x.sol") != "" {
		t.Fatal("git URIs must not map to paths")
	}
}
