// Package config is the compiler CLI's build configuration: a small YAML
// document naming where rule sources live and where a distribution should
// be written, as a plain struct plus a DefaultConfig constructor supplying
// conventional layout defaults.
package config

import (
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// minSchemaVersion is the oldest build.yaml schemaVersion this compiler
// still accepts.
const minSchemaVersion = "v1.0.0"

// Sources names the glob patterns each DSL's rule files are discovered
// under.
type Sources struct {
	OAL []string `yaml:"oal"`
	MAL []string `yaml:"mal"`
	LAL []string `yaml:"lal"`
}

// BuildConfig drives one `obsdslc build` invocation.
type BuildConfig struct {
	SchemaVersion string  `yaml:"schemaVersion"`
	Sources       Sources `yaml:"sources"`
	Output        string  `yaml:"output"`
	PackagePrefix string  `yaml:"packagePrefix"`
	Watch         bool    `yaml:"watch"`
}

// DefaultConfig supplies the source glob defaults a conventional repo
// layout needs, leaving Output unset since every build must say where its
// distribution goes.
func DefaultConfig() *BuildConfig {
	return &BuildConfig{
		SchemaVersion: minSchemaVersion,
		Sources: Sources{
			OAL: []string{"oal/*.oal"},
			MAL: []string{"mal/**/*.yaml"},
			LAL: []string{"lal/**/*.yaml"},
		},
	}
}

// Load reads and parses a BuildConfig YAML file from path.
func Load(path string) (*BuildConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Output == "" {
		return nil, fmt.Errorf("config: %s: output is required", path)
	}
	if !semver.IsValid(cfg.SchemaVersion) {
		return nil, fmt.Errorf("config: %s: schemaVersion %q is not a valid semantic version", path, cfg.SchemaVersion)
	}
	if semver.Compare(cfg.SchemaVersion, minSchemaVersion) < 0 {
		return nil, fmt.Errorf("config: %s: schemaVersion %s is older than the minimum supported %s", path, cfg.SchemaVersion, minSchemaVersion)
	}
	return cfg, nil
}
