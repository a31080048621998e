// Package status reports, without running anything, which cached actions of
// a project are up to date.
package status

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/fingerprint"
	"github.com/dusk-indust/polydeps/internal/stamp"
)

// Source is the read-only view of one ecosystem that a report needs.
// *orchestrator.Orchestrator satisfies it.
type Source interface {
	Ecosystem() detect.Ecosystem
	Params() detect.Params
	Detect() (detect.ToolVariant, []diag.Warning, error)
	Stamps() ([]stamp.Record, error)
	ToolchainStamps() ([]stamp.Record, error)
	FingerprintFor(action dispatch.Action, params detect.Params) (fingerprint.Value, error)
}

// ActionInfo describes one cached action for one parameter tuple.
type ActionInfo struct {
	Action     dispatch.Action   `json:"action"`
	Key        string            `json:"key"`
	Params     detect.Params     `json:"params"`
	Recorded   bool              `json:"recorded"`
	Fresh      bool              `json:"fresh"`
	Current    bool              `json:"current"` // params equal the configured tuple
	Stamped    fingerprint.Value `json:"recorded_fingerprint,omitempty"`
	Now        fingerprint.Value `json:"fingerprint,omitempty"`
	RecordedAt time.Time         `json:"recorded_at,omitempty"`
}

// EcosystemStatus is the report for one ecosystem.
type EcosystemStatus struct {
	Ecosystem  detect.Ecosystem `json:"ecosystem"`
	Variant    string           `json:"variant,omitempty"`
	Error      string           `json:"error,omitempty"`
	Warnings   []diag.Warning   `json:"warnings,omitempty"`
	Actions    []ActionInfo     `json:"actions"`
	Toolchains []string         `json:"toolchains,omitempty"`
}

// Report builds the status of src. The configured parameter tuple always
// gets a line per cached action, recorded or not; stamps recorded under
// other tuples follow.
func Report(ctx context.Context, src Source) (EcosystemStatus, error) {
	st := EcosystemStatus{Ecosystem: src.Ecosystem()}

	v, warnings, err := src.Detect()
	if err != nil {
		// A project without a manifest still has a report.
		st.Error = err.Error()
		return st, nil
	}
	st.Variant = v.Name()
	st.Warnings = warnings

	records, err := src.Stamps()
	if err != nil {
		return st, fmt.Errorf("listing stamps: %w", err)
	}
	byKey := make(map[string]stamp.Record, len(records))
	for _, r := range records {
		byKey[r.Key] = r
	}

	current := src.Params()
	seen := make(map[string]bool)
	for _, a := range []dispatch.Action{dispatch.ActionInstall, dispatch.ActionBuild} {
		key := stamp.ActionKey(string(a), current)
		seen[key] = true
		info, err := describe(src, a, key, current, byKey)
		if err != nil {
			return st, err
		}
		info.Current = true
		st.Actions = append(st.Actions, info)
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if seen[r.Key] {
			continue
		}
		info, err := describe(src, dispatch.Action(r.Action), r.Key, r.Params, byKey)
		if err != nil {
			return st, err
		}
		st.Actions = append(st.Actions, info)
	}

	tcs, err := src.ToolchainStamps()
	if err != nil {
		return st, fmt.Errorf("listing toolchain stamps: %w", err)
	}
	for _, r := range tcs {
		st.Toolchains = append(st.Toolchains, r.Variant)
	}
	sort.Strings(st.Toolchains)
	return st, nil
}

func describe(src Source, action dispatch.Action, key string, params detect.Params, byKey map[string]stamp.Record) (ActionInfo, error) {
	info := ActionInfo{Action: action, Key: key, Params: params}
	now, err := src.FingerprintFor(action, params)
	if err != nil {
		return info, fmt.Errorf("fingerprinting %s: %w", action, err)
	}
	info.Now = now
	if r, ok := byKey[key]; ok {
		info.Recorded = true
		info.Stamped = r.Fingerprint
		info.RecordedAt = r.RecordedAt
		info.Fresh = r.Fingerprint == now
	}
	return info, nil
}

// Format renders a report as indented text lines.
func Format(st EcosystemStatus) string {
	var b strings.Builder
	if st.Error != "" {
		fmt.Fprintf(&b, "%s: %s\n", st.Ecosystem, st.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "%s: %s\n", st.Ecosystem, st.Variant)
	for _, w := range st.Warnings {
		fmt.Fprintf(&b, "  ! %s\n", w.Message)
	}
	for _, a := range st.Actions {
		state := "never run"
		switch {
		case a.Fresh:
			state = "up to date"
		case a.Recorded:
			state = "stale"
		}
		label := fmt.Sprintf("%s [%s]", a.Action, a.Params)
		fmt.Fprintf(&b, "  %-40s %s\n", label, state)
	}
	for _, tc := range st.Toolchains {
		fmt.Fprintf(&b, "  toolchain %s installed\n", tc)
	}
	return b.String()
}
