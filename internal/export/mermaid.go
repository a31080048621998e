package export

import (
	"fmt"
	"strings"
)

// Mermaid produces a Mermaid graph TD diagram with one subgraph per
// ecosystem. Required prerequisites are solid arrows, optional ones dotted.
// Nodes are styled by state.
func Mermaid(graphs []Graph) string {
	// Mermaid IDs must be alphanumeric.
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	byState := make(map[NodeState][]string)
	for _, g := range graphs {
		title := string(g.Ecosystem)
		if g.Variant != "" {
			title += ": " + g.Variant
		}
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%s\"]\n", getID(string(g.Ecosystem)+"_cluster"), title))
		for _, n := range g.Nodes {
			id := getID(string(g.Ecosystem) + "/" + string(n.Action))
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, n.Action))
			byState[n.State] = append(byState[n.State], id)
		}
		sb.WriteString("  end\n")

		for _, e := range g.Edges {
			arrow := "-->"
			if !e.Required {
				arrow = "-.->"
			}
			sb.WriteString(fmt.Sprintf("  %s %s %s\n",
				getID(string(g.Ecosystem)+"/"+string(e.From)), arrow, getID(string(g.Ecosystem)+"/"+string(e.To))))
		}
	}

	for _, st := range []NodeState{NodeFresh, NodeStale, NodeNeverRun, NodeUncached} {
		ids := byState[st]
		if len(ids) == 0 {
			continue
		}
		name := className(st)
		sb.WriteString(fmt.Sprintf("  classDef %s %s\n", name, classStyles[st]))
		sb.WriteString(fmt.Sprintf("  class %s %s\n", strings.Join(ids, ","), name))
	}

	return sb.String()
}

var classStyles = map[NodeState]string{
	NodeFresh:    "fill:#d4edda,stroke:#28a745",
	NodeStale:    "fill:#fff3cd,stroke:#ffc107",
	NodeNeverRun: "fill:#f8f9fa,stroke:#6c757d",
	NodeUncached: "fill:#ffffff,stroke:#adb5bd,stroke-dasharray:3",
}

func className(st NodeState) string {
	return strings.ReplaceAll(string(st), "-", "")
}
