package detect

import (
	"strings"

	"github.com/dusk-indust/polydeps/internal/diag"
)

// CheckConflicts performs a lightweight consistency scan of the present
// strict lockfiles. Detection already resolved the winner by priority; every
// other strict lockfile is reported because the tool it belongs to will
// never be used.
func CheckConflicts(desc ProjectDescriptor, chosen ToolVariant) []diag.Warning {
	var ignored []string
	for _, m := range desc.WithRole(RoleStrictLock) {
		if m.Path == chosen.Lockfile {
			continue
		}
		// bun.lock and bun.lockb together describe one tool.
		if chosen.Kind == KindBun && (m.Path == BunLock || m.Path == BunLockBinary) {
			continue
		}
		ignored = append(ignored, m.Path)
	}
	if len(ignored) == 0 || chosen.Lockfile == "" {
		return nil
	}
	return []diag.Warning{diag.Warnf(diag.WarnConflictingLockfiles,
		"%s selected %s; ignoring %s", chosen.Lockfile, chosen.Name(), strings.Join(ignored, ", "))}
}
