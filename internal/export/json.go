// Package export renders the action graph of a project, annotated with
// what the stamp store knows about each action, as JSON or Mermaid.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/orchestrator"
	"github.com/dusk-indust/polydeps/internal/status"
)

// NodeState is the freshness of one action under the configured parameters.
type NodeState string

const (
	NodeFresh    NodeState = "fresh"
	NodeStale    NodeState = "stale"
	NodeNeverRun NodeState = "never-run"
	// NodeUncached actions run every time and keep no stamp.
	NodeUncached NodeState = "uncached"
)

// Graph is the action graph of one ecosystem.
type Graph struct {
	Ecosystem detect.Ecosystem `json:"ecosystem"`
	Variant   string           `json:"variant,omitempty"`
	Error     string           `json:"error,omitempty"`
	Nodes     []Node           `json:"nodes"`
	Edges     []Edge           `json:"edges"`
}

// Node is one verb of the ecosystem.
type Node struct {
	Action dispatch.Action `json:"action"`
	State  NodeState       `json:"state"`
}

// Edge points from a prerequisite to the action that needs it.
type Edge struct {
	From     dispatch.Action `json:"from"`
	To       dispatch.Action `json:"to"`
	Required bool            `json:"required"`
}

// BuildGraph derives the graph of st.Ecosystem from its status report.
// clean and reinstall are left out: they reset state rather than depend
// on it.
func BuildGraph(st status.EcosystemStatus) Graph {
	g := Graph{Ecosystem: st.Ecosystem, Variant: st.Variant, Error: st.Error}

	current := make(map[dispatch.Action]status.ActionInfo)
	for _, info := range st.Actions {
		if info.Current {
			current[info.Action] = info
		}
	}

	actions := append([]dispatch.Action(nil), dispatch.CommonActions...)
	if st.Ecosystem == detect.EcosystemRust {
		actions = append(actions, dispatch.RustActions...)
	}
	for _, action := range actions {
		if action == dispatch.ActionClean || action == dispatch.ActionReinstall {
			continue
		}
		g.Nodes = append(g.Nodes, Node{Action: action, State: nodeState(action, current)})
		for _, p := range orchestrator.Prerequisites(st.Ecosystem, action) {
			g.Edges = append(g.Edges, Edge{From: p.Action, To: action, Required: p.Required})
		}
	}
	return g
}

func nodeState(action dispatch.Action, current map[dispatch.Action]status.ActionInfo) NodeState {
	if !action.Cached() {
		return NodeUncached
	}
	info, ok := current[action]
	switch {
	case !ok || !info.Recorded:
		return NodeNeverRun
	case info.Fresh:
		return NodeFresh
	default:
		return NodeStale
	}
}

// JSON encodes graphs as indented JSON.
func JSON(graphs []Graph) ([]byte, error) {
	data, err := json.MarshalIndent(graphs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding graphs: %w", err)
	}
	return data, nil
}
