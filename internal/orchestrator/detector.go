package orchestrator

import (
	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
)

// resolution is the TOOL_RESOLVED snapshot of one action.
type resolution struct {
	desc     detect.ProjectDescriptor
	variant  detect.ToolVariant
	warnings []diag.Warning
}

func (o *Orchestrator) resolve() (resolution, error) {
	return o.resolveFor(o.params)
}

// resolveFor scans the project, picks the tool variant for params and
// applies the ecosystem's missing-binary fallback, if it has one. Nothing
// is cached between calls: every action sees the directory as it is now.
func (o *Orchestrator) resolveFor(params detect.Params) (resolution, error) {
	desc, err := detect.Scan(o.cfg.Root, o.rules)
	if err != nil {
		return resolution{}, err
	}
	v, err := o.rules.Detect(desc, params)
	if err != nil {
		return resolution{}, err
	}

	res := resolution{desc: desc, variant: v}
	res.warnings = append(res.warnings, detect.CheckConflicts(desc, v)...)

	if fb, w, ok := o.fallback(desc, v); ok {
		res.variant = fb
		res.warnings = append(res.warnings, w)
	}

	log.Debug("tool resolved", "ecosystem", string(o.cfg.Ecosystem), "variant", res.variant.Name(),
		"markers", desc.Paths())
	return res, nil
}

// Detect returns the variant the next action would use.
func (o *Orchestrator) Detect() (detect.ToolVariant, []diag.Warning, error) {
	res, err := o.resolve()
	if err != nil {
		return detect.ToolVariant{}, nil, err
	}
	return res.variant, res.warnings, nil
}

// Descriptor returns the current marker scan.
func (o *Orchestrator) Descriptor() (detect.ProjectDescriptor, error) {
	return detect.Scan(o.cfg.Root, o.rules)
}
