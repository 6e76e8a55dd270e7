package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forgelsp/internal/forge"
	"forgelsp/internal/index"
	"forgelsp/internal/source"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestParseLintPolicy(t *testing.T) {
	p, err := parseLintPolicy("never")
	require.NoError(t, err)
	assert.Equal(t, forge.LintNever, p)
	p, err = parseLintPolicy("always")
	require.NoError(t, err)
	assert.Equal(t, forge.LintAlways, p)
	p, err = parseLintPolicy("")
	require.NoError(t, err)
	assert.Equal(t, forge.LintAuto, p)
	_, err = parseLintPolicy("sometimes")
	assert.Error(t, err)
}

func TestWriteSymbolTableAligns(t *testing.T) {
	syms := []index.SymbolEntry{
		{Name: "Counter", Kind: index.KindContract, FilePath: "/p/src/Counter.sol", Line: 1, Column: 9},
		{Name: "increment", Kind: index.KindFunction, Container: "Counter", FilePath: "/p/src/Counter.sol", Line: 3, Column: 13},
		{Name: "IERC20", Kind: index.KindContract, Detail: "interface", FilePath: "/p/lib/IERC20.sol", Range: source.Range{}},
	}
	var buf bytes.Buffer
	require.NoError(t, writeSymbolTable(&buf, "/p", syms))
	want := "" +
		"KIND       NAME               LOCATION\n" +
		"contract   Counter            src/Counter.sol:2:10\n" +
		"function   Counter.increment  src/Counter.sol:4:14\n" +
		"interface  IERC20             lib/IERC20.sol:1:1\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	info := versionInfo{Version: "1.2.3", GitCommit: "abc"}
	require.NoError(t, renderVersionJSON(&buf, info, versionOptions{showHash: true, showDate: true}, ""))

	var payload versionPayload
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "forgelsp", payload.Tool)
	assert.Equal(t, "abc", payload.GitCommit)
	assert.Equal(t, "unknown", payload.BuildDate)
	assert.Empty(t, payload.ForgeVersion)
}
