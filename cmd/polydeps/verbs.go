package main

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/orchestrator"
	"github.com/spf13/cobra"
)

var verbShort = map[dispatch.Action]string{
	dispatch.ActionInstall:   "Install dependencies if lockfiles or manifests changed",
	dispatch.ActionBuild:     "Build if sources changed (installs first)",
	dispatch.ActionRun:       "Run the project; extra args after --",
	dispatch.ActionTest:      "Run the test suite; extra args after --",
	dispatch.ActionCheck:     "Run the linter or type checker",
	dispatch.ActionClean:     "Remove build outputs and recorded stamps",
	dispatch.ActionReinstall: "Clean, then install",
	dispatch.ActionClippy:    "cargo clippy",
	dispatch.ActionClippyFix: "cargo clippy --fix",
	dispatch.ActionFmt:       "cargo fmt",
	dispatch.ActionFmtCheck:  "cargo fmt --check",
	dispatch.ActionNextest:   "cargo nextest run",
}

func newVerbCommand(a *app, action dispatch.Action, group string) *cobra.Command {
	return &cobra.Command{
		Use:     string(action) + " [-- args...]",
		Short:   verbShort[action],
		GroupID: group,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerb(cmd, action, args)
		},
	}
}

func (a *app) runVerb(cmd *cobra.Command, action dispatch.Action, args []string) error {
	s, err := a.session(cmd)
	if err != nil {
		return err
	}

	// Rust extras apply to the rust part of a mixed project only.
	var ecosystems []detect.Ecosystem
	for _, eco := range s.ecosystems {
		if dispatch.Supports(eco, action) {
			ecosystems = append(ecosystems, eco)
		}
	}
	if len(ecosystems) == 0 {
		return &dispatch.UnsupportedActionError{Ecosystem: s.ecosystems[0], Action: action}
	}
	s.ecosystems = ecosystems

	stop := func() {}
	if a.flags.verbose {
		s.onProgress, stop = startProgress(a.stderr)
	}

	orchs, err := s.openAll()
	if err != nil {
		stop()
		return err
	}
	runners := make([]orchestrator.Runner, len(orchs))
	for i, o := range orchs {
		runners[i] = o
	}

	outcomes, err := orchestrator.NewFanOut(a.flags.parallel, s.onProgress).Run(cmd.Context(), runners, action, args)
	stop()
	for _, out := range outcomes {
		if out != nil {
			fmt.Fprintln(a.stderr, summarize(out))
		}
	}
	return err
}

// summarize renders one outcome as a single line.
func summarize(out *orchestrator.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: ", out.Ecosystem, out.Action)
	switch {
	case out.Final() == orchestrator.StateFailed:
		b.WriteString("failed")
	case out.Skipped():
		b.WriteString("up to date")
	case out.Action == dispatch.ActionClean:
		fmt.Fprintf(&b, "removed %d paths", len(out.Removed))
	default:
		b.WriteString("done")
	}
	if name := out.Variant.Name(); out.Variant.Kind != "" {
		fmt.Fprintf(&b, " (%s)", name)
	}
	if n := len(out.AllWarnings()); n > 0 {
		fmt.Fprintf(&b, ", %d warning(s)", n)
	}
	return b.String()
}
