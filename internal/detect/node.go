package detect

import (
	"encoding/json"
	"io/fs"

	"github.com/dusk-indust/polydeps/internal/diag"
	"gopkg.in/yaml.v3"
)

// Node marker files.
const (
	PnpmLock          = "pnpm-lock.yaml"
	YarnLock          = "yarn.lock"
	BunLock           = "bun.lock"
	BunLockBinary     = "bun.lockb"
	NpmLock           = "package-lock.json"
	NpmShrinkwrap     = "npm-shrinkwrap.json"
	PackageJSON       = "package.json"
	YarnRC            = ".yarnrc.yml"
	PnpmWorkspaceYAML = "pnpm-workspace.yaml"
)

// NodeRules detects pnpm, yarn, bun and npm projects.
type NodeRules struct{}

var _ Rules = NodeRules{}

func (NodeRules) Ecosystem() Ecosystem { return EcosystemNode }

func (NodeRules) Candidates() []Candidate {
	return []Candidate{
		{Path: PnpmLock, Role: RoleStrictLock},
		{Path: YarnLock, Role: RoleStrictLock},
		{Path: BunLock, Role: RoleStrictLock},
		{Path: BunLockBinary, Role: RoleStrictLock},
		{Path: NpmLock, Role: RoleStrictLock},
		{Path: NpmShrinkwrap, Role: RoleStrictLock},
		{Path: PackageJSON, Role: RoleManifest, Load: true},
		{Path: YarnRC, Role: RoleLinkerConfig, Load: true},
		{Path: PnpmWorkspaceYAML, Role: RoleWorkspaceConfig, Load: true},
	}
}

// Detect applies the fixed priority pnpm > yarn > bun > npm (lockfile) >
// npm (bare manifest).
func (NodeRules) Detect(desc ProjectDescriptor, _ Params) (ToolVariant, error) {
	strict := func(kind Kind, tool, lock string) ToolVariant {
		return ToolVariant{Ecosystem: EcosystemNode, Kind: kind, Tool: tool, Lockfile: lock, Strict: true}
	}

	switch {
	case desc.Has(PnpmLock):
		return strict(KindPnpm, "pnpm", PnpmLock), nil
	case desc.Has(YarnLock):
		v := strict(KindYarn, "yarn", YarnLock)
		v.Linker = YarnLinker(desc)
		return v, nil
	case desc.Has(BunLock):
		return strict(KindBun, "bun", BunLock), nil
	case desc.Has(BunLockBinary):
		return strict(KindBun, "bun", BunLockBinary), nil
	case desc.Has(NpmLock):
		return strict(KindNpmStrict, "npm", NpmLock), nil
	case desc.Has(NpmShrinkwrap):
		return strict(KindNpmStrict, "npm", NpmShrinkwrap), nil
	case desc.Has(PackageJSON):
		return ToolVariant{Ecosystem: EcosystemNode, Kind: KindNpmLoose, Tool: "npm"}, nil
	default:
		return ToolVariant{}, &diag.MissingManifestError{
			Ecosystem: string(EcosystemNode),
			Root:      desc.Root,
			Expected:  []string{PackageJSON, PnpmLock, YarnLock, BunLock, NpmLock},
		}
	}
}

// YarnLinker reads nodeLinker from .yarnrc.yml. A missing or unparsable
// file, or an empty value, means the pnp default.
func YarnLinker(desc ProjectDescriptor) string {
	m, ok := desc.Marker(YarnRC)
	if !ok {
		return LinkerPnP
	}
	var rc struct {
		NodeLinker string `yaml:"nodeLinker"`
	}
	if err := yaml.Unmarshal(m.Data, &rc); err != nil || rc.NodeLinker == "" {
		return LinkerPnP
	}
	return rc.NodeLinker
}

func (NodeRules) Fallback(ToolVariant, ProjectDescriptor) (ToolVariant, bool) {
	return ToolVariant{}, false
}

// Members reads workspace globs from pnpm-workspace.yaml and the
// package.json "workspaces" field (array or {packages: [...]}).
func (NodeRules) Members(fsys fs.FS, desc ProjectDescriptor) ([]string, error) {
	var patterns []string

	if m, ok := desc.Marker(PnpmWorkspaceYAML); ok {
		var ws struct {
			Packages []string `yaml:"packages"`
		}
		if err := yaml.Unmarshal(m.Data, &ws); err == nil {
			patterns = append(patterns, ws.Packages...)
		}
	}

	if m, ok := desc.Marker(PackageJSON); ok {
		var pkg struct {
			Workspaces json.RawMessage `json:"workspaces"`
		}
		if err := json.Unmarshal(m.Data, &pkg); err == nil && len(pkg.Workspaces) > 0 {
			var list []string
			if err := json.Unmarshal(pkg.Workspaces, &list); err == nil {
				patterns = append(patterns, list...)
			} else {
				var obj struct {
					Packages []string `json:"packages"`
				}
				if err := json.Unmarshal(pkg.Workspaces, &obj); err == nil {
					patterns = append(patterns, obj.Packages...)
				}
			}
		}
	}

	if len(patterns) == 0 {
		return nil, nil
	}
	return expandMembers(fsys, patterns, []string{"**/node_modules/**"}, PackageJSON)
}

// ArtifactPaths ignores outputDir: node tools never write there, and the
// directory may hold other ecosystems' outputs.
func (NodeRules) ArtifactPaths(string) []string {
	return []string{"node_modules", ".pnp.cjs", ".pnp.loader.mjs", ".yarn/install-state.gz"}
}

func (NodeRules) SourceGlobs() []string {
	return []string{"src/**", "tsconfig.json"}
}
