package detect

import (
	"bufio"
	"bytes"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dusk-indust/polydeps/internal/diag"
)

// Rust marker files.
const (
	CargoToml         = "Cargo.toml"
	CargoLock         = "Cargo.lock"
	RustToolchainToml = "rust-toolchain.toml"
	RustToolchain     = "rust-toolchain"
	CargoConfig       = ".cargo/config.toml"

	// DefaultToolchain is used when neither params nor a toolchain file
	// name one.
	DefaultToolchain = "stable"
)

// RustRules detects cargo projects. The tool is fixed; detection resolves
// the toolchain identifier and target and finds workspace members.
type RustRules struct{}

var _ Rules = RustRules{}

func (RustRules) Ecosystem() Ecosystem { return EcosystemRust }

func (RustRules) Candidates() []Candidate {
	return []Candidate{
		{Path: CargoLock, Role: RoleStrictLock},
		{Path: CargoToml, Role: RoleManifest, Load: true},
		{Path: RustToolchainToml, Role: RoleToolchainFile, Load: true},
		{Path: RustToolchain, Role: RoleToolchainFile, Load: true},
		{Path: CargoConfig, Role: RoleWorkspaceConfig},
	}
}

func (RustRules) Detect(desc ProjectDescriptor, params Params) (ToolVariant, error) {
	if !desc.Has(CargoToml) {
		return ToolVariant{}, &diag.MissingManifestError{
			Ecosystem: string(EcosystemRust),
			Root:      desc.Root,
			Expected:  []string{CargoToml},
		}
	}

	p := params.Normalized()
	v := ToolVariant{
		Ecosystem: EcosystemRust,
		Kind:      KindCargo,
		Tool:      "cargo",
		Toolchain: ResolveToolchain(desc, p),
		Target:    p.Target,
	}
	if desc.Has(CargoLock) {
		v.Strict = true
		v.Lockfile = CargoLock
	}
	return v, nil
}

// ResolveToolchain picks the toolchain: explicit params, then
// rust-toolchain.toml's channel, then the legacy rust-toolchain file, then
// stable.
func ResolveToolchain(desc ProjectDescriptor, params Params) string {
	if params.Toolchain != "" {
		return params.Toolchain
	}
	if m, ok := desc.Marker(RustToolchainToml); ok {
		var f struct {
			Toolchain struct {
				Channel string `toml:"channel"`
			} `toml:"toolchain"`
		}
		if err := toml.Unmarshal(m.Data, &f); err == nil && f.Toolchain.Channel != "" {
			return f.Toolchain.Channel
		}
	}
	if m, ok := desc.Marker(RustToolchain); ok {
		sc := bufio.NewScanner(bytes.NewReader(m.Data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" && !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "[") {
				return line
			}
		}
	}
	return DefaultToolchain
}

func (RustRules) Fallback(ToolVariant, ProjectDescriptor) (ToolVariant, bool) {
	return ToolVariant{}, false
}

// Members expands [workspace] members minus exclude.
func (RustRules) Members(fsys fs.FS, desc ProjectDescriptor) ([]string, error) {
	m, ok := desc.Marker(CargoToml)
	if !ok {
		return nil, nil
	}
	var manifest struct {
		Workspace *struct {
			Members []string `toml:"members"`
			Exclude []string `toml:"exclude"`
		} `toml:"workspace"`
	}
	if err := toml.Unmarshal(m.Data, &manifest); err != nil {
		// cargo itself reports malformed manifests; detection only loses
		// member tracking.
		return nil, nil
	}
	if manifest.Workspace == nil || len(manifest.Workspace.Members) == 0 {
		return nil, nil
	}
	return expandMembers(fsys, manifest.Workspace.Members, manifest.Workspace.Exclude, CargoToml)
}

func (RustRules) ArtifactPaths(outputDir string) []string {
	if outputDir != "" {
		// The directory is cargo's --target-dir. Its contents go; the state
		// dir inside it is left to the stamp stores.
		return []string{filepath.Join(outputDir, "*")}
	}
	return []string{"target"}
}

func (RustRules) SourceGlobs() []string {
	return []string{"**/*.rs"}
}
