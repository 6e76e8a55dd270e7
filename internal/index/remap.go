package index

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Rule is one remapping, "context:prefix=target". Context is optional and
// limits the rule to importing files under that root-relative directory.
type Rule struct {
	Context string
	Prefix  string
	Target  string
}

// String renders the rule in Foundry syntax.
func (r Rule) String() string {
	if r.Context != "" {
		return r.Context + ":" + r.Prefix + "=" + r.Target
	}
	return r.Prefix + "=" + r.Target
}

// ParseRule parses one remapping line.
func ParseRule(line string) (Rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Rule{}, false
	}
	left, target, ok := strings.Cut(line, "=")
	if !ok {
		return Rule{}, false
	}
	var rule Rule
	if ctx, prefix, hasCtx := strings.Cut(left, ":"); hasCtx {
		rule.Context = strings.TrimSpace(ctx)
		left = prefix
	}
	rule.Prefix = strings.TrimSpace(left)
	rule.Target = strings.TrimSpace(target)
	if rule.Prefix == "" || rule.Target == "" {
		return Rule{}, false
	}
	return rule, true
}

// Rules is an ordered rule list; order is declaration order.
type Rules []Rule

// ParseRules parses lines, dropping blanks, comments, malformed entries and
// exact duplicates of an earlier rule.
func ParseRules(lines []string) Rules {
	var out Rules
	for _, line := range lines {
		if r, ok := ParseRule(line); ok {
			out = out.add(r)
		}
	}
	return out
}

func (rs Rules) add(r Rule) Rules {
	for _, existing := range rs {
		if existing == r {
			return rs
		}
	}
	return append(rs, r)
}

// Merge appends other's rules that are not already present.
func (rs Rules) Merge(other Rules) Rules {
	out := append(Rules(nil), rs...)
	for _, r := range other {
		out = out.add(r)
	}
	return out
}

// Match returns the winning rule for importPath imported from fromRel, a
// root-relative slash path ("" when unknown). The longest matching prefix
// wins; among equal prefixes the first declared wins.
func (rs Rules) Match(importPath, fromRel string) (Rule, bool) {
	best := -1
	for i, r := range rs {
		if !strings.HasPrefix(importPath, r.Prefix) {
			continue
		}
		if r.Context != "" && !strings.HasPrefix(fromRel, r.Context) {
			continue
		}
		if best < 0 || len(r.Prefix) > len(rs[best].Prefix) {
			best = i
		}
	}
	if best < 0 {
		return Rule{}, false
	}
	return rs[best], true
}

// Apply rewrites importPath with the winning rule and returns a path joined
// onto root when the target is relative. The result is not checked for
// existence.
func (rs Rules) Apply(root, importPath, fromRel string) (string, bool) {
	r, ok := rs.Match(importPath, fromRel)
	if !ok {
		return "", false
	}
	rest := strings.TrimPrefix(importPath[len(r.Prefix):], "/")
	target := filepath.FromSlash(r.Target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	return filepath.Join(target, filepath.FromSlash(rest)), true
}

// readRemappingsFile reads remappings.txt. A missing file yields no rules.
func readRemappingsFile(path string) ([]string, error) {
	// #nosec G304 -- path is the project's remappings.txt
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
