package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/diag"
	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/dusk-indust/polydeps/internal/orchestrator"
	"github.com/dusk-indust/polydeps/internal/status"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Project is one ecosystem of the served project.
// *orchestrator.Orchestrator satisfies it.
type Project interface {
	status.Source
	Descriptor() (detect.ProjectDescriptor, error)
	Do(ctx context.Context, action dispatch.Action, args []string) (*orchestrator.Outcome, error)
}

// Opener returns the Project for an ecosystem. It is called per tool call
// so configuration changes on disk are picked up.
type Opener func(eco detect.Ecosystem) (Project, error)

// Service handles MCP tool calls against one project directory.
type Service struct {
	root       string
	ecosystems []detect.Ecosystem
	open       Opener
}

// NewService creates a Service for the ecosystems found in root.
func NewService(root string, ecosystems []detect.Ecosystem, open Opener) *Service {
	return &Service{root: root, ecosystems: ecosystems, open: open}
}

// RunAction runs one verb. Tool failures are reported in the output, not as
// protocol errors; invalid input is an error.
func (s *Service) RunAction(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunActionInput,
) (*mcp.CallToolResult, RunActionOutput, error) {
	action, err := dispatch.ParseAction(input.Action)
	if err != nil {
		return nil, RunActionOutput{Action: input.Action, Status: "failed", Message: err.Error()}, err
	}
	eco, err := s.pick(input.Ecosystem)
	if err != nil {
		return nil, RunActionOutput{Action: input.Action, Status: "failed", Message: err.Error()}, err
	}

	output := RunActionOutput{Ecosystem: string(eco), Action: string(action)}
	p, err := s.open(eco)
	if err != nil {
		return nil, output, fmt.Errorf("opening %s: %w", eco, err)
	}

	out, runErr := p.Do(ctx, action, input.Args)
	if out != nil {
		output.Variant = out.Variant.Name()
		output.Fingerprint = out.Fingerprint.String()
		output.ExitCode = out.ExitCode
		output.Removed = out.Removed
		for _, w := range out.AllWarnings() {
			output.Warnings = append(output.Warnings, w.String())
		}
	}

	switch {
	case runErr != nil:
		output.Status = "failed"
		output.Message = runErr.Error()
		output.ExitCode = diag.ExitCode(runErr)
	case out != nil && out.Skipped():
		output.Status = "up-to-date"
	default:
		output.Status = "done"
	}
	return nil, output, nil
}

// GetStatus reports freshness for every ecosystem, or the requested one.
func (s *Service) GetStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetStatusInput,
) (*mcp.CallToolResult, GetStatusOutput, error) {
	ecosystems := s.ecosystems
	if input.Ecosystem != "" {
		eco, err := s.pick(input.Ecosystem)
		if err != nil {
			return nil, GetStatusOutput{}, err
		}
		ecosystems = []detect.Ecosystem{eco}
	}

	var output GetStatusOutput
	for _, eco := range ecosystems {
		p, err := s.open(eco)
		if err != nil {
			return nil, GetStatusOutput{}, fmt.Errorf("opening %s: %w", eco, err)
		}
		st, err := status.Report(ctx, p)
		if err != nil {
			return nil, GetStatusOutput{}, fmt.Errorf("%s status: %w", eco, err)
		}
		output.Ecosystems = append(output.Ecosystems, st)
	}
	return nil, output, nil
}

// DetectTools reports the tool variant each ecosystem would use.
func (s *Service) DetectTools(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ DetectToolsInput,
) (*mcp.CallToolResult, DetectToolsOutput, error) {
	output := DetectToolsOutput{Root: s.root}
	for _, eco := range s.ecosystems {
		tool := DetectedTool{Ecosystem: string(eco)}
		p, err := s.open(eco)
		if err != nil {
			return nil, DetectToolsOutput{}, fmt.Errorf("opening %s: %w", eco, err)
		}
		if desc, err := p.Descriptor(); err == nil {
			tool.Markers = desc.Paths()
		}
		v, warnings, err := p.Detect()
		if err != nil {
			tool.Error = err.Error()
			output.Tools = append(output.Tools, tool)
			continue
		}
		tool.Variant = v.Name()
		tool.Tool = v.Tool
		tool.Lockfile = v.Lockfile
		tool.Strict = v.Strict
		for _, w := range warnings {
			tool.Warnings = append(tool.Warnings, w.String())
		}
		output.Tools = append(output.Tools, tool)
	}
	return nil, output, nil
}

// pick resolves the ecosystem named in a tool call. An empty name is
// accepted when the project has exactly one ecosystem.
func (s *Service) pick(name string) (detect.Ecosystem, error) {
	if name == "" {
		if len(s.ecosystems) == 1 {
			return s.ecosystems[0], nil
		}
		return "", errors.New("ecosystem is required when the project has more than one")
	}
	eco, ok := detect.ParseEcosystem(name)
	if !ok {
		return "", fmt.Errorf("unknown ecosystem %q", name)
	}
	for _, e := range s.ecosystems {
		if e == eco {
			return eco, nil
		}
	}
	return "", fmt.Errorf("ecosystem %s not found in %s", eco, s.root)
}
