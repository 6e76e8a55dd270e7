package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
)

// uriToPath converts a file URI, or a bare path, to an absolute local path.
// URIs with another scheme (untitled:, git:, ...) have no path.
func uriToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	var path string
	switch parsed.Scheme {
	case "file":
		path = parsed.Path
		// file:///C:/x parses to /C:/x
		if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
	case "":
		path = uri
		if unescaped, unescErr := url.PathUnescape(path); unescErr == nil {
			path = unescaped
		}
	default:
		if len(parsed.Scheme) == 1 {
			// a Windows drive letter, not a scheme
			path = uri
			break
		}
		return ""
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

func pathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// canonicalURI normalizes a file URI so one document always maps to one
// key. Non-file URIs yield "".
func canonicalURI(uri string) string {
	return pathToURI(uriToPath(uri))
}
