package orchestrator

import (
	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
)

// fallback returns the degraded variant to use when v's binary is missing
// and the ecosystem tolerates it. Only python does: a poetry project whose
// poetry is absent proceeds with an editable pip install. node and rust
// never fall back, so their missing binary surfaces as a fatal
// MissingToolBinaryError at dispatch.
//
// TODO: confirm with the product owner whether node and rust should get a
// fallback too; until then the asymmetry is kept as observed.
func (o *Orchestrator) fallback(desc detect.ProjectDescriptor, v detect.ToolVariant) (detect.ToolVariant, diag.Warning, bool) {
	if _, err := o.invoker.LookPath(v.Tool); err == nil {
		return v, diag.Warning{}, false
	}
	fb, ok := o.rules.Fallback(v, desc)
	if !ok {
		return v, diag.Warning{}, false
	}

	w := diag.Warnf(diag.WarnFallbackProceeded,
		"%s is not installed but %s is present; proceeding with %s via %s",
		v.Tool, v.Lockfile, fb.Name(), fb.Tool)
	return fb, w, true
}
