// Package orchestrator drives one ecosystem through detection, the
// freshness check, toolchain setup and dispatch:
//
//	uninitialized -> tool-resolved -> fresh (no-op)
//	                               -> stale -> done (stamp written)
//	                                        -> failed (stamp untouched)
package orchestrator

import (
	"context"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/fingerprint"
)

// State is a step of the per-action state machine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateToolResolved  State = "tool-resolved"
	StateFresh         State = "fresh"
	StateStale         State = "stale"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Outcome records what one action did.
type Outcome struct {
	Ecosystem   detect.Ecosystem   `json:"ecosystem"`
	Action      dispatch.Action    `json:"action"`
	Variant     detect.ToolVariant `json:"variant"`
	Params      detect.Params      `json:"params"`
	Fingerprint fingerprint.Value  `json:"fingerprint,omitempty"`
	StampKey    string             `json:"stamp_key,omitempty"`
	ExitCode    int                `json:"exit_code"`
	States      []State            `json:"states"`
	Warnings    []diag.Warning     `json:"warnings,omitempty"`
	// Removed lists what clean deleted, root-relative where possible.
	Removed []string `json:"removed,omitempty"`
	// Prereqs are the outcomes of the actions that had to complete first.
	Prereqs []*Outcome `json:"prereqs,omitempty"`
}

// Final returns the last visited state.
func (o *Outcome) Final() State {
	if len(o.States) == 0 {
		return StateUninitialized
	}
	return o.States[len(o.States)-1]
}

// Skipped reports whether the action was a cache hit.
func (o *Outcome) Skipped() bool {
	return o.Final() == StateFresh
}

// AllWarnings returns the warnings of the action and its prerequisites,
// prerequisites first.
func (o *Outcome) AllWarnings() []diag.Warning {
	var out []diag.Warning
	for _, p := range o.Prereqs {
		out = append(out, p.AllWarnings()...)
	}
	return append(out, o.Warnings...)
}

func (o *Outcome) visit(s State) {
	o.States = append(o.States, s)
}

// ProgressEvent is emitted while actions run.
type ProgressEvent struct {
	Ecosystem detect.Ecosystem
	Action    dispatch.Action
	Status    ProgressStatus
	Message   string
}

// ProgressStatus is the state of an action as shown to the user.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
	ProgressSkipped  ProgressStatus = "skipped"
)

// Runner executes verbs for one ecosystem.
type Runner interface {
	Ecosystem() detect.Ecosystem

	// Do runs action and its prerequisites.
	Do(ctx context.Context, action dispatch.Action, args []string) (*Outcome, error)
}
