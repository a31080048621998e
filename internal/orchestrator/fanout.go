package orchestrator

import (
	"context"

	"github.com/dusk-indust/polydeps/internal/dispatch"
	"golang.org/x/sync/errgroup"
)

// FanOut runs one action across several ecosystems of the same project.
// Each ecosystem owns a disjoint stamp namespace, so running them side by
// side is safe.
type FanOut struct {
	parallel   bool
	onProgress func(ProgressEvent)
}

// NewFanOut creates a FanOut. With parallel unset, ecosystems run one after
// another and the first failure stops the rest. onProgress may be nil.
func NewFanOut(parallel bool, onProgress func(ProgressEvent)) *FanOut {
	return &FanOut{parallel: parallel, onProgress: onProgress}
}

// Run executes action on every runner. Outcomes are returned in runner
// order; entries for runners that never started are nil. The returned
// error is the first failure.
//
// In parallel mode errgroup.WithContext cancels the shared context on the
// first failure, and the in-flight tools receive an interrupt.
func (f *FanOut) Run(ctx context.Context, runners []Runner, action dispatch.Action, args []string) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(runners))
	for _, r := range runners {
		f.emit(ProgressEvent{Ecosystem: r.Ecosystem(), Action: action, Status: ProgressPending})
	}

	if !f.parallel {
		for i, r := range runners {
			out, err := r.Do(ctx, action, args)
			outcomes[i] = out
			if err != nil {
				return outcomes, err
			}
		}
		return outcomes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range runners {
		g.Go(func() error {
			out, err := r.Do(gctx, action, args)
			outcomes[i] = out
			return err
		})
	}
	err := g.Wait()
	return outcomes, err
}

func (f *FanOut) emit(ev ProgressEvent) {
	if f.onProgress != nil {
		f.onProgress(ev)
	}
}
