package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultProfile is used when FOUNDRY_PROFILE is unset.
const DefaultProfile = "default"

// Manifest is the subset of foundry.toml this server needs, with Foundry's
// defaults filled in. Directory fields are absolute.
type Manifest struct {
	Path    string
	Root    string
	Profile string

	Src        string
	Test       string
	Script     string
	Out        string
	CachePath  string
	Libs       []string
	Remappings []string
}

type foundryConfig struct {
	Profile map[string]profileConfig `toml:"profile"`
}

type profileConfig struct {
	Src        string   `toml:"src"`
	Test       string   `toml:"test"`
	Script     string   `toml:"script"`
	Out        string   `toml:"out"`
	CachePath  string   `toml:"cache_path"`
	Libs       []string `toml:"libs"`
	Remappings []string `toml:"remappings"`
}

// Default returns a manifest with Foundry's built-in layout rooted at root.
func Default(root string) *Manifest {
	m := &Manifest{Root: root, Profile: DefaultProfile}
	m.apply(profileConfig{})
	return m
}

// Load discovers foundry.toml from startDir upward and decodes it.
func Load(startDir string) (*Manifest, bool, error) {
	path, ok, err := FindFoundryToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := LoadManifest(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// LoadManifest decodes the manifest at path. The active profile is taken
// from FOUNDRY_PROFILE; keys it leaves unset fall back to [profile.default].
func LoadManifest(path string) (*Manifest, error) {
	var cfg foundryConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	profile := os.Getenv("FOUNDRY_PROFILE")
	if profile == "" {
		profile = DefaultProfile
	}
	merged := cfg.Profile[DefaultProfile]
	if profile != DefaultProfile {
		if !meta.IsDefined("profile", profile) {
			return nil, fmt.Errorf("%s: profile %q is not defined", path, profile)
		}
		merged = overlay(merged, cfg.Profile[profile])
	}
	m := &Manifest{
		Path:    path,
		Root:    filepath.Dir(path),
		Profile: profile,
	}
	m.apply(merged)
	return m, nil
}

func overlay(base, over profileConfig) profileConfig {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	base.Src = pick(base.Src, over.Src)
	base.Test = pick(base.Test, over.Test)
	base.Script = pick(base.Script, over.Script)
	base.Out = pick(base.Out, over.Out)
	base.CachePath = pick(base.CachePath, over.CachePath)
	if over.Libs != nil {
		base.Libs = over.Libs
	}
	if over.Remappings != nil {
		base.Remappings = over.Remappings
	}
	return base
}

func (m *Manifest) apply(p profileConfig) {
	dir := func(v, def string) string {
		if v == "" {
			v = def
		}
		if filepath.IsAbs(v) {
			return filepath.Clean(v)
		}
		return filepath.Join(m.Root, v)
	}
	m.Src = dir(p.Src, "src")
	m.Test = dir(p.Test, "test")
	m.Script = dir(p.Script, "script")
	m.Out = dir(p.Out, "out")
	m.CachePath = dir(p.CachePath, "cache")
	libs := p.Libs
	if len(libs) == 0 {
		libs = []string{"lib"}
	}
	m.Libs = make([]string, 0, len(libs))
	for _, l := range libs {
		m.Libs = append(m.Libs, dir(l, "lib"))
	}
	m.Remappings = append([]string(nil), p.Remappings...)
}

// SourceDirs returns the project's own source directories.
func (m *Manifest) SourceDirs() []string {
	return []string{m.Src, m.Test, m.Script}
}

// LibDirs returns library search directories: configured libs followed by
// node_modules.
func (m *Manifest) LibDirs() []string {
	out := append([]string(nil), m.Libs...)
	nm := filepath.Join(m.Root, "node_modules")
	for _, l := range out {
		if l == nm {
			return out
		}
	}
	return append(out, nm)
}

// RemappingsFile is the project-root remappings.txt.
func (m *Manifest) RemappingsFile() string {
	return filepath.Join(m.Root, "remappings.txt")
}

// FilesCache is forge's solidity-files-cache.json.
func (m *Manifest) FilesCache() string {
	return filepath.Join(m.CachePath, "solidity-files-cache.json")
}

// BuildInfoDir holds forge's build-info JSON documents.
func (m *Manifest) BuildInfoDir() string {
	return filepath.Join(m.Out, "build-info")
}
