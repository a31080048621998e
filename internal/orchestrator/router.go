package orchestrator

import (
	"context"
	"fmt"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/dispatch"
)

// ActionExecutor runs a single action, without its prerequisites.
type ActionExecutor interface {
	Execute(ctx context.Context, action dispatch.Action, args []string) (*Outcome, error)
}

// Router runs an action's prerequisites before the action itself.
type Router struct {
	eco  detect.Ecosystem
	exec ActionExecutor
}

// NewRouter creates a Router for eco delegating to exec.
func NewRouter(eco detect.Ecosystem, exec ActionExecutor) *Router {
	return &Router{eco: eco, exec: exec}
}

// Prerequisite names an action that must reach done (or fresh) first.
type Prerequisite struct {
	Action   dispatch.Action `json:"action"`
	Required bool            `json:"required"` // if false, a failure is logged and the action proceeds
}

// Prerequisites returns the direct prerequisites of action in eco.
func Prerequisites(eco detect.Ecosystem, action dispatch.Action) []Prerequisite {
	switch action {
	case dispatch.ActionInstall:
		return nil
	case dispatch.ActionBuild:
		return []Prerequisite{{Action: dispatch.ActionInstall, Required: true}}
	}

	if eco != detect.EcosystemRust {
		switch action {
		case dispatch.ActionRun, dispatch.ActionTest, dispatch.ActionCheck:
			return []Prerequisite{{Action: dispatch.ActionInstall, Required: true}}
		}
		return nil
	}

	switch action {
	case dispatch.ActionRun, dispatch.ActionTest, dispatch.ActionNextest:
		return []Prerequisite{{Action: dispatch.ActionBuild, Required: true}}
	case dispatch.ActionCheck, dispatch.ActionClippy, dispatch.ActionClippyFix:
		return []Prerequisite{{Action: dispatch.ActionInstall, Required: true}}
	case dispatch.ActionFmt, dispatch.ActionFmtCheck:
		// rustfmt needs no dependencies; a failed fetch only costs a warning.
		return []Prerequisite{{Action: dispatch.ActionInstall, Required: false}}
	}
	return nil
}

// Route resolves prerequisites for action recursively, then executes it.
// Prerequisites run without the caller's arguments.
func (r *Router) Route(ctx context.Context, action dispatch.Action, args []string) (*Outcome, error) {
	var prereqs []*Outcome
	for _, rule := range Prerequisites(r.eco, action) {
		sub, err := r.Route(ctx, rule.Action, nil)
		if sub != nil {
			prereqs = append(prereqs, sub)
		}
		if err != nil {
			if !rule.Required {
				log.Warn("optional prerequisite failed; continuing",
					"ecosystem", string(r.eco), "action", string(action), "prerequisite", string(rule.Action), "error", err)
				continue
			}
			out := &Outcome{Ecosystem: r.eco, Action: action, Prereqs: prereqs}
			out.visit(StateUninitialized)
			out.visit(StateFailed)
			return out, fmt.Errorf("prerequisite %s of %s: %w", rule.Action, action, err)
		}
	}

	out, err := r.exec.Execute(ctx, action, args)
	if out != nil {
		out.Prereqs = append(prereqs, out.Prereqs...)
	}
	return out, err
}
