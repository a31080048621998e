package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from polydeps.yml.
// Every field is optional; zero values mean "use the ecosystem default".
type ProjectConfig struct {
	Toolchain    string              `yaml:"toolchain,omitempty"`
	Profile      string              `yaml:"profile,omitempty"`
	Features     []string            `yaml:"features,omitempty"`
	Target       string              `yaml:"target,omitempty"`
	OutputDir    string              `yaml:"outputDir,omitempty"`
	DenyWarnings *bool               `yaml:"denyWarnings,omitempty"`
	Python       string              `yaml:"python,omitempty"`
	RunScript    string              `yaml:"runScript,omitempty"`
	Ecosystems   []string            `yaml:"ecosystems,omitempty"`
	Watch        map[string][]string `yaml:"watch,omitempty"`
}

// FileNames are the config file names tried in order.
var FileNames = []string{"polydeps.yml", "polydeps.yaml"}

// Load attempts to read polydeps.yml or polydeps.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}

// Environment variable names consulted by ApplyEnv.
const (
	EnvToolchain    = "POLYDEPS_TOOLCHAIN"
	EnvProfile      = "POLYDEPS_PROFILE"
	EnvFeatures     = "POLYDEPS_FEATURES"
	EnvTarget       = "POLYDEPS_TARGET"
	EnvOutputDir    = "POLYDEPS_OUTPUT_DIR"
	EnvDenyWarnings = "POLYDEPS_DENY_WARNINGS"
	EnvPython       = "POLYDEPS_PYTHON"
)

// ApplyEnv overrides fields from POLYDEPS_* variables. lookup is normally
// os.LookupEnv.
func (c *ProjectConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvToolchain); ok {
		c.Toolchain = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvProfile); ok {
		c.Profile = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvFeatures); ok {
		c.Features = SplitList(v)
	}
	if v, ok := lookup(EnvTarget); ok {
		c.Target = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvOutputDir); ok {
		c.OutputDir = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPython); ok {
		c.Python = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDenyWarnings); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDenyWarnings, err)
		}
		c.DenyWarnings = &b
	}
	return nil
}

// Overrides carries values set explicitly on the command line. Nil or empty
// fields leave the config untouched.
type Overrides struct {
	Toolchain    *string
	Profile      *string
	Features     []string
	FeaturesSet  bool
	Target       *string
	OutputDir    *string
	DenyWarnings *bool
	Python       *string
	Ecosystems   []string
}

// Apply layers command-line overrides on top of the file and environment.
func (c *ProjectConfig) Apply(o Overrides) {
	if o.Toolchain != nil {
		c.Toolchain = *o.Toolchain
	}
	if o.Profile != nil {
		c.Profile = *o.Profile
	}
	if o.FeaturesSet {
		c.Features = o.Features
	}
	if o.Target != nil {
		c.Target = *o.Target
	}
	if o.OutputDir != nil {
		c.OutputDir = *o.OutputDir
	}
	if o.DenyWarnings != nil {
		c.DenyWarnings = o.DenyWarnings
	}
	if o.Python != nil {
		c.Python = *o.Python
	}
	if len(o.Ecosystems) > 0 {
		c.Ecosystems = o.Ecosystems
	}
}

// Resolve loads the file in dir, then applies environment and flag
// overrides in that order.
func Resolve(dir string, lookup func(string) (string, bool), o Overrides) (*ProjectConfig, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.Apply(o)
	return cfg, nil
}

// LintStrict reports whether lint warnings are fatal. Defaults to true.
func (c *ProjectConfig) LintStrict() bool {
	if c.DenyWarnings == nil {
		return true
	}
	return *c.DenyWarnings
}

// PythonBinary returns the configured interpreter or python3.
func (c *ProjectConfig) PythonBinary() string {
	if c.Python != "" {
		return c.Python
	}
	return "python3"
}

// SplitList splits a comma or whitespace separated list, dropping empties.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
