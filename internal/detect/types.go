// Package detect inspects a project directory and picks the single tool
// variant that governs each ecosystem found there.
package detect

import (
	"sort"
)

// Ecosystem identifies a family of package managers sharing marker files.
type Ecosystem string

const (
	EcosystemNode   Ecosystem = "node"
	EcosystemRust   Ecosystem = "rust"
	EcosystemPython Ecosystem = "python"
)

// AllEcosystems lists the supported ecosystems in their fixed report order.
var AllEcosystems = []Ecosystem{EcosystemNode, EcosystemRust, EcosystemPython}

// ParseEcosystem maps a name (or common alias) to an Ecosystem.
func ParseEcosystem(name string) (Ecosystem, bool) {
	switch name {
	case "node", "js", "javascript", "ts", "typescript":
		return EcosystemNode, true
	case "rust", "cargo", "rs":
		return EcosystemRust, true
	case "python", "py":
		return EcosystemPython, true
	default:
		return "", false
	}
}

// Role tags a marker file with the part it plays in detection.
type Role string

const (
	RoleStrictLock      Role = "lockfile-strict"
	RoleManifest        Role = "manifest-fallback"
	RoleLinkerConfig    Role = "linker-config"
	RoleToolchainFile   Role = "toolchain-file"
	RoleWorkspaceConfig Role = "workspace-config"
	RoleWorkspaceMember Role = "workspace-member"
	RoleSource          Role = "source"
)

// Candidate is a marker file an ecosystem looks for.
type Candidate struct {
	Path string
	Role Role
	// Load asks Scan to keep the file contents for detection to parse.
	Load bool
}

// Marker is a candidate that exists in the project root.
type Marker struct {
	Path string
	Role Role
	Data []byte
}

// ProjectDescriptor is the existence-filtered marker set of one ecosystem.
// Watched holds every candidate path, present or not, sorted.
type ProjectDescriptor struct {
	Root      string
	Ecosystem Ecosystem
	Markers   []Marker
	Watched   []string
}

// Has reports whether the marker at path exists.
func (d ProjectDescriptor) Has(path string) bool {
	_, ok := d.Marker(path)
	return ok
}

// Marker returns the marker at path.
func (d ProjectDescriptor) Marker(path string) (Marker, bool) {
	for _, m := range d.Markers {
		if m.Path == path {
			return m, true
		}
	}
	return Marker{}, false
}

// WithRole returns the present markers having the given role, sorted by path.
func (d ProjectDescriptor) WithRole(role Role) []Marker {
	var out []Marker
	for _, m := range d.Markers {
		if m.Role == role {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Paths returns the present marker paths, sorted.
func (d ProjectDescriptor) Paths() []string {
	out := make([]string, 0, len(d.Markers))
	for _, m := range d.Markers {
		out = append(out, m.Path)
	}
	sort.Strings(out)
	return out
}

// Kind is the closed set of tool variants across ecosystems.
type Kind string

const (
	KindPnpm             Kind = "pnpm"
	KindYarn             Kind = "yarn"
	KindBun              Kind = "bun"
	KindNpmStrict        Kind = "npm-strict"
	KindNpmLoose         Kind = "npm-loose"
	KindPoetry           Kind = "poetry"
	KindRequirementsLock Kind = "requirements-lock"
	KindRequirementsTxt  Kind = "requirements-txt"
	KindEditableFallback Kind = "editable-fallback"
	KindCargo            Kind = "cargo"
)

// Yarn linker modes.
const (
	LinkerPnP         = "pnp"
	LinkerPnpm        = "pnpm"
	LinkerNodeModules = "node-modules"
)

// ToolVariant is the single active tool choice for an ecosystem.
type ToolVariant struct {
	Ecosystem Ecosystem `json:"ecosystem"`
	Kind      Kind      `json:"kind"`
	// Tool is the binary looked up on PATH.
	Tool string `json:"tool"`
	// Linker is set for yarn only.
	Linker string `json:"linker,omitempty"`
	// Lockfile is the marker that selected a strict variant.
	Lockfile string `json:"lockfile,omitempty"`
	// Strict variants install in frozen mode and never fall through to
	// another tool.
	Strict    bool   `json:"strict"`
	Toolchain string `json:"toolchain,omitempty"`
	Target    string `json:"target,omitempty"`
	// FallbackFrom is the kind this variant replaced because its binary was
	// missing. Empty unless Fallback produced the variant.
	FallbackFrom Kind `json:"fallback_from,omitempty"`
}

// Name renders the variant for logs and fingerprints.
func (v ToolVariant) Name() string {
	switch v.Kind {
	case KindYarn:
		return string(v.Kind) + "(" + v.Linker + ")"
	case KindCargo:
		name := string(v.Kind)
		if v.Toolchain != "" {
			name += "+" + v.Toolchain
		}
		if v.Target != "" {
			name += "@" + v.Target
		}
		return name
	default:
		return string(v.Kind)
	}
}
