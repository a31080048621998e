package mcptools

import "github.com/dusk-indust/polydeps/internal/status"

// --- MCP tool types for serve-mcp ---

// RunActionInput is the input for the run_action MCP tool.
type RunActionInput struct {
	Ecosystem string   `json:"ecosystem,omitempty" jsonschema:"node, rust or python (optional when the project has a single ecosystem)"`
	Action    string   `json:"action" jsonschema:"verb to run: install, build, run, test, check, clean, reinstall, or a rust extra (clippy, clippy-fix, fmt, fmt-check, nextest)"`
	Args      []string `json:"args,omitempty" jsonschema:"extra arguments passed through to the tool"`
}

// RunActionOutput is the result of the run_action MCP tool.
type RunActionOutput struct {
	Ecosystem   string   `json:"ecosystem"`
	Action      string   `json:"action"`
	Status      string   `json:"status"` // "done", "up-to-date" or "failed"
	Variant     string   `json:"variant,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	ExitCode    int      `json:"exitCode"`
	Warnings    []string `json:"warnings,omitempty"`
	Removed     []string `json:"removed,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// GetStatusInput is the input for the get_status MCP tool.
type GetStatusInput struct {
	Ecosystem string `json:"ecosystem,omitempty" jsonschema:"limit the report to one ecosystem"`
}

// GetStatusOutput is the result of the get_status MCP tool.
type GetStatusOutput struct {
	Ecosystems []status.EcosystemStatus `json:"ecosystems"`
}

// DetectToolsInput is the input for the detect_tools MCP tool.
type DetectToolsInput struct{}

// DetectToolsOutput is the result of the detect_tools MCP tool.
type DetectToolsOutput struct {
	Root  string         `json:"root"`
	Tools []DetectedTool `json:"tools"`
}

// DetectedTool is the tool variant chosen for one ecosystem.
type DetectedTool struct {
	Ecosystem string   `json:"ecosystem"`
	Variant   string   `json:"variant,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	Lockfile  string   `json:"lockfile,omitempty"`
	Strict    bool     `json:"strict"`
	Markers   []string `json:"markers,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Error     string   `json:"error,omitempty"`
}
