package orchestrator

import (
	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/fingerprint"
	"github.com/dusk-indust/polydeps/internal/stamp"
)

// Stamps lists the recorded stamps of this ecosystem.
func (o *Orchestrator) Stamps() ([]stamp.Record, error) {
	return o.stamps.List()
}

// ToolchainStamps lists the recorded toolchain stamps. It is empty outside
// rust.
func (o *Orchestrator) ToolchainStamps() ([]stamp.Record, error) {
	if o.toolStamps == nil {
		return nil, nil
	}
	return o.toolStamps.List()
}

// FingerprintFor computes what a cached action would record right now for
// params, without running anything.
func (o *Orchestrator) FingerprintFor(action dispatch.Action, params detect.Params) (fingerprint.Value, error) {
	params = params.Normalized()
	res, err := o.resolveFor(params)
	if err != nil {
		return "", err
	}
	return o.fingerprintFor(res, action, params)
}
