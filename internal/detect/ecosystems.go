package detect

import (
	"fmt"
	"os"
	"path/filepath"
)

// RulesFor returns the rules of an ecosystem. python is the interpreter
// used by pip-based python variants.
func RulesFor(eco Ecosystem, python string) (Rules, error) {
	switch eco {
	case EcosystemNode:
		return NodeRules{}, nil
	case EcosystemRust:
		return RustRules{}, nil
	case EcosystemPython:
		return PythonRules{Python: python}, nil
	default:
		return nil, fmt.Errorf("unsupported ecosystem %q", eco)
	}
}

// manifestsByEcosystem are the files whose presence makes an ecosystem
// applicable to a directory.
var manifestsByEcosystem = map[Ecosystem][]string{
	EcosystemNode:   {PackageJSON, PnpmLock, YarnLock, BunLock, BunLockBinary, NpmLock},
	EcosystemRust:   {CargoToml},
	EcosystemPython: {PyProjectToml, SetupPy, RequirementsTxt, RequirementsLock, PoetryLock},
}

// DetectEcosystems lists the ecosystems present in root, in AllEcosystems
// order.
func DetectEcosystems(root string) []Ecosystem {
	var out []Ecosystem
	for _, eco := range AllEcosystems {
		for _, name := range manifestsByEcosystem[eco] {
			info, err := os.Stat(filepath.Join(root, name))
			if err == nil && !info.IsDir() {
				out = append(out, eco)
				break
			}
		}
	}
	return out
}
