package detect

import (
	"io/fs"
	"path/filepath"

	"github.com/dusk-indust/polydeps/internal/diag"
)

// Python marker files.
const (
	PoetryLock       = "poetry.lock"
	RequirementsLock = "requirements.lock"
	RequirementsTxt  = "requirements.txt"
	PyProjectToml    = "pyproject.toml"
	SetupPy          = "setup.py"
)

// PythonRules detects poetry and pip projects. Python is the one ecosystem
// that tolerates a missing lockfile tool by falling back to an editable
// install.
type PythonRules struct {
	// Python is the interpreter used by the pip-based variants.
	Python string
}

var _ Rules = PythonRules{}

func (PythonRules) Ecosystem() Ecosystem { return EcosystemPython }

func (PythonRules) Candidates() []Candidate {
	return []Candidate{
		{Path: PoetryLock, Role: RoleStrictLock},
		{Path: RequirementsLock, Role: RoleStrictLock},
		{Path: RequirementsTxt, Role: RoleManifest},
		{Path: PyProjectToml, Role: RoleManifest},
		{Path: SetupPy, Role: RoleManifest},
	}
}

func (r PythonRules) interpreter() string {
	if r.Python != "" {
		return r.Python
	}
	return "python3"
}

// Detect applies poetry > pip-compiled lock > requirements.txt > editable
// install of the project manifest.
func (r PythonRules) Detect(desc ProjectDescriptor, _ Params) (ToolVariant, error) {
	switch {
	case desc.Has(PoetryLock):
		return ToolVariant{Ecosystem: EcosystemPython, Kind: KindPoetry, Tool: "poetry", Lockfile: PoetryLock, Strict: true}, nil
	case desc.Has(RequirementsLock):
		return ToolVariant{Ecosystem: EcosystemPython, Kind: KindRequirementsLock, Tool: r.interpreter(), Lockfile: RequirementsLock, Strict: true}, nil
	case desc.Has(RequirementsTxt):
		return ToolVariant{Ecosystem: EcosystemPython, Kind: KindRequirementsTxt, Tool: r.interpreter()}, nil
	case hasProjectManifest(desc):
		return r.editable(), nil
	default:
		return ToolVariant{}, &diag.MissingManifestError{
			Ecosystem: string(EcosystemPython),
			Root:      desc.Root,
			Expected:  []string{PoetryLock, RequirementsLock, RequirementsTxt, PyProjectToml, SetupPy},
		}
	}
}

func (r PythonRules) editable() ToolVariant {
	return ToolVariant{Ecosystem: EcosystemPython, Kind: KindEditableFallback, Tool: r.interpreter()}
}

func hasProjectManifest(desc ProjectDescriptor) bool {
	return desc.Has(PyProjectToml) || desc.Has(SetupPy)
}

// Fallback lets a poetry project proceed with an editable pip install when
// poetry itself is not installed.
func (r PythonRules) Fallback(v ToolVariant, desc ProjectDescriptor) (ToolVariant, bool) {
	if v.Kind != KindPoetry || !hasProjectManifest(desc) {
		return ToolVariant{}, false
	}
	fb := r.editable()
	fb.FallbackFrom = v.Kind
	return fb, true
}

func (PythonRules) Members(fs.FS, ProjectDescriptor) ([]string, error) {
	return nil, nil
}

func (PythonRules) ArtifactPaths(outputDir string) []string {
	paths := []string{"build", "dist", "*.egg-info", "**/__pycache__"}
	if outputDir != "" {
		// Only the wheels and sdists python builds put there.
		paths = append(paths, filepath.Join(outputDir, "*.whl"), filepath.Join(outputDir, "*.tar.gz"))
	}
	return paths
}

func (PythonRules) SourceGlobs() []string {
	return []string{"**/*.py"}
}
