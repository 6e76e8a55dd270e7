package forge

import (
	"regexp"
	"strings"
)

// Channel is the release channel of the installed forge.
type Channel string

const (
	ChannelUnknown Channel = "unknown"
	ChannelStable  Channel = "stable"
	ChannelNightly Channel = "nightly"
)

// VersionInfo describes the output of `forge --version`.
type VersionInfo struct {
	Raw     string
	Version string
	Commit  string
	Channel Channel
}

var (
	semverRE = regexp.MustCompile(`\b(\d+\.\d+\.\d+(?:-[0-9A-Za-z.\-]+)?)`)
	commitRE = regexp.MustCompile(`(?i)(?:commit sha:\s*|\()([0-9a-f]{7,40})\b`)
)

// ParseVersion reads both the current multi-line format
// ("forge Version: 1.2.3-nightly\nCommit SHA: ...") and the older one-line
// format ("forge 0.2.0 (abc1234 2024-01-01T00:00:00Z)").
func ParseVersion(raw string) VersionInfo {
	raw = strings.TrimSpace(raw)
	info := VersionInfo{Raw: raw, Channel: ChannelUnknown}
	if raw == "" {
		return info
	}
	if m := semverRE.FindStringSubmatch(raw); m != nil {
		info.Version = m[1]
	}
	if m := commitRE.FindStringSubmatch(raw); m != nil {
		info.Commit = m[1]
	}
	switch {
	case strings.Contains(strings.ToLower(raw), "nightly"):
		info.Channel = ChannelNightly
	case info.Version != "":
		info.Channel = ChannelStable
	}
	return info
}
