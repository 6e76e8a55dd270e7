package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/diag"
	"forgelsp/internal/source"
)

const counterSrc = "pragma solidity ^0.8.0;\ncontract Counter {\n\tuint256 unused;\n}\n"

func sample() ([]diag.Diagnostic, map[string]*source.File) {
	f := source.NewVirtualFile("/work/proj/src/Counter.sol", counterSrc)
	d := diag.Diagnostic{
		FilePath: "/work/proj/src/Counter.sol",
		Range:    f.Range(source.Span{Start: 52, End: 58}),
		Severity: diag.SevWarning,
		Source:   diag.SourceCompile,
		Code:     "2072",
		Message:  "Unused local variable.",
		HelpURL:  "https://example.org/2072",
	}
	lint := diag.Diagnostic{
		FilePath: "/work/proj/src/Counter.sol",
		Range:    f.Range(source.Span{Start: 33, End: 40}),
		Severity: diag.SevError,
		Source:   diag.SourceLint,
		Code:     "mixed-case",
		Message:  "bad name",
	}
	return []diag.Diagnostic{lint, d}, map[string]*source.File{f.Path: f}
}

func TestDisplayPath(t *testing.T) {
	p := "/work/proj/src/Counter.sol"
	assert.Equal(t, "src/Counter.sol", displayPath(p, PathModeAuto, "/work/proj"))
	assert.Equal(t, p, displayPath(p, PathModeAuto, "/elsewhere"))
	assert.Equal(t, "../proj/src/Counter.sol", displayPath(p, PathModeRelative, "/work/other"))
	assert.Equal(t, p, displayPath(p, PathModeAbsolute, "/work/proj"))
	assert.Equal(t, "Counter.sol", displayPath(p, PathModeBasename, ""))
}

func TestPrettyWithContext(t *testing.T) {
	diags, files := sample()
	var buf bytes.Buffer
	require.NoError(t, Pretty(&buf, diags[1:], files, PrettyOpts{Context: true, BaseDir: "/work/proj", ShowHelp: true}))
	want := "src/Counter.sol:3:9: WARNING 2072: Unused local variable. [forge-compile]\n" +
		" 3 | \tuint256 unused;\n" +
		"   | \t        ^~~~~~\n" +
		"  help: https://example.org/2072\n"
	assert.Equal(t, want, buf.String())
}

func TestPrettyWithoutContext(t *testing.T) {
	diags, _ := sample()
	var buf bytes.Buffer
	require.NoError(t, Pretty(&buf, diags, nil, PrettyOpts{Context: true, PathMode: PathModeBasename}))
	assert.Equal(t,
		"Counter.sol:2:10: ERROR mixed-case: bad name [forge-lint]\n"+
			"Counter.sol:3:9: WARNING 2072: Unused local variable. [forge-compile]\n",
		buf.String())
}

func TestJSONCountsAndTruncation(t *testing.T) {
	diags, _ := sample()
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, diags, JSONOpts{BaseDir: "/work/proj", Max: 1}))

	var doc DiagnosticsJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Count)
	assert.Equal(t, 1, doc.Errors)
	assert.Equal(t, 1, doc.Warnings)
	assert.True(t, doc.Truncated)
	require.Len(t, doc.Diagnostics, 1)
	got := doc.Diagnostics[0]
	assert.Equal(t, "src/Counter.sol", got.File)
	assert.Equal(t, "error", got.Severity)
	assert.Equal(t, "forge-lint", got.Source)
	assert.Equal(t, 2, got.Line)
	assert.Equal(t, 10, got.Column)
}

func TestSarif(t *testing.T) {
	diags, _ := sample()
	var buf bytes.Buffer
	require.NoError(t, Sarif(&buf, diags, SarifRunMeta{ToolName: "forgelsp", ToolVersion: "0.1.0", BaseDir: "/work/proj"}))

	var log sarifLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	assert.Equal(t, "2.1.0", log.Version)
	require.Len(t, log.Runs, 1)
	require.Len(t, log.Runs[0].Results, 2)
	res := log.Runs[0].Results[1]
	assert.Equal(t, "2072", res.RuleID)
	assert.Equal(t, "warning", res.Level)
	assert.Equal(t, "src/Counter.sol", res.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, 3, res.Locations[0].PhysicalLocation.Region.StartLine)
}
