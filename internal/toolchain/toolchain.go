// Package toolchain ensures a rustup toolchain, cross-compilation target and
// components are installed before cargo is dispatched.
package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/fingerprint"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/logger"
	"github.com/dusk-indust/polydeps/internal/stamp"
)

// Manager is the toolchain manager binary.
const Manager = "rustup"

// InstallHint is shown when rustup is missing.
const InstallHint = "install rustup from https://rustup.rs and re-run"

var log = logger.ForComponent("toolchain")

// Request names what must be present.
type Request struct {
	Toolchain  string
	Target     string
	Components []string
}

func (r Request) normalized() Request {
	out := Request{Toolchain: strings.TrimSpace(r.Toolchain), Target: strings.TrimSpace(r.Target)}
	if out.Toolchain == "" {
		out.Toolchain = detect.DefaultToolchain
	}
	seen := make(map[string]bool)
	for _, c := range r.Components {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out.Components = append(out.Components, c)
	}
	sort.Strings(out.Components)
	return out
}

// Key is the stamp key of the normalized request.
func (r Request) Key() string {
	n := r.normalized()
	var buf []byte
	write := func(s string) {
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	write(n.Toolchain)
	write(n.Target)
	for _, c := range n.Components {
		write(c)
	}
	sum := sha256.Sum256(buf)
	return "toolchain-" + hex.EncodeToString(sum[:8])
}

func (r Request) String() string {
	n := r.normalized()
	s := n.Toolchain
	if n.Target != "" {
		s += "@" + n.Target
	}
	if len(n.Components) > 0 {
		s += " [" + strings.Join(n.Components, ",") + "]"
	}
	return s
}

type installStep struct {
	name string
	args []string
}

// Resolver installs toolchains through rustup and caches success in the
// toolchain stamp namespace.
type Resolver struct {
	invoker invoke.Invoker
	stamps  *stamp.Store
	dir     string
}

// New creates a Resolver running rustup in dir.
func New(invoker invoke.Invoker, stamps *stamp.Store, dir string) *Resolver {
	return &Resolver{invoker: invoker, stamps: stamps, dir: dir}
}

// Ensure makes sure req is satisfied. A stamped request returns cached=true
// without calling rustup. Nothing is stamped unless every step succeeds.
func (r *Resolver) Ensure(ctx context.Context, req Request) (cached bool, err error) {
	req = req.normalized()
	key := req.Key()

	if _, ok, err := r.stamps.Read(key); err != nil {
		return false, err
	} else if ok {
		log.Debug("toolchain satisfied from stamp", "toolchain", req.String())
		return true, nil
	}

	if _, err := r.invoker.LookPath(Manager); err != nil {
		return false, &diag.MissingToolBinaryError{Tool: Manager, Hint: InstallHint}
	}

	steps := []installStep{
		{"toolchain install", []string{"toolchain", "install", req.Toolchain, "--profile", "minimal"}},
	}
	if req.Target != "" {
		steps = append(steps, installStep{"target add", []string{"target", "add", "--toolchain", req.Toolchain, req.Target}})
	}
	if len(req.Components) > 0 {
		args := append([]string{"component", "add", "--toolchain", req.Toolchain}, req.Components...)
		steps = append(steps, installStep{"component add", args})
	}

	for _, step := range steps {
		log.Info("ensuring toolchain", "step", step.name, "toolchain", req.String())
		res, err := r.invoker.Run(ctx, invoke.Invocation{Dir: r.dir, Name: Manager, Args: step.args})
		if err != nil {
			return false, &diag.ToolchainInstallError{Toolchain: req.Toolchain, Target: req.Target, Step: step.name, Err: err}
		}
		if !res.Success() {
			return false, &diag.ToolchainInstallError{
				Toolchain: req.Toolchain,
				Target:    req.Target,
				Step:      step.name,
				Err:       &diag.ExternalToolError{Tool: Manager, Args: step.args, ExitCode: res.ExitCode},
			}
		}
	}

	rec := stamp.Record{
		Ecosystem:   stamp.NamespaceToolchain,
		Action:      "ensure",
		Fingerprint: fingerprint.Value(key),
		Variant:     req.String(),
		Params:      detect.Params{Toolchain: req.Toolchain, Target: req.Target},
	}
	if err := r.stamps.Write(key, rec); err != nil {
		return false, fmt.Errorf("recording toolchain %s: %w", req.String(), err)
	}
	return false, nil
}

// ComponentsFor returns the rustup components an action needs.
func ComponentsFor(action string) []string {
	switch action {
	case "clippy", "clippy-fix":
		return []string{"clippy"}
	case "fmt", "fmt-check":
		return []string{"rustfmt"}
	default:
		return nil
	}
}
