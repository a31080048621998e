package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dusk-indust/polydeps/internal/export"
	"github.com/dusk-indust/polydeps/internal/mcptools"
	"github.com/dusk-indust/polydeps/internal/status"
	"github.com/spf13/cobra"
)

func (a *app) runStatus(cmd *cobra.Command, _ []string) error {
	s, err := a.session(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	reports, err := s.reports(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON {
		return a.printJSON(reports)
	}
	for i, st := range reports {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		fmt.Fprint(a.stdout, status.Format(st))
	}
	return nil
}

func (a *app) runGraph(cmd *cobra.Command, _ []string) error {
	s, err := a.session(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "mermaid" && format != "json" {
		return fmt.Errorf("unknown graph format %q (supported: mermaid, json)", format)
	}

	reports, err := s.reports(cmd.Context())
	if err != nil {
		return err
	}
	graphs := make([]export.Graph, len(reports))
	for i, st := range reports {
		graphs[i] = export.BuildGraph(st)
	}

	if format == "json" {
		data, err := export.JSON(graphs)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}
	fmt.Fprint(a.stdout, export.Mermaid(graphs))
	return nil
}

func (s *session) reports(ctx context.Context) ([]status.EcosystemStatus, error) {
	var reports []status.EcosystemStatus
	for _, eco := range s.ecosystems {
		o, err := s.open(eco)
		if err != nil {
			return nil, err
		}
		st, err := status.Report(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("%s status: %w", eco, err)
		}
		reports = append(reports, st)
	}
	return reports, nil
}

func (a *app) runDetect(cmd *cobra.Command, _ []string) error {
	s, err := a.session(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	svc := mcptools.NewService(s.root, s.ecosystems, s.project)
	_, out, err := svc.DetectTools(cmd.Context(), nil, mcptools.DetectToolsInput{})
	if err != nil {
		return err
	}
	if asJSON {
		return a.printJSON(out)
	}

	for _, tool := range out.Tools {
		if tool.Error != "" {
			fmt.Fprintf(a.stdout, "%-7s error: %s\n", tool.Ecosystem, tool.Error)
			continue
		}
		mode := "mutable"
		if tool.Strict {
			mode = "frozen (" + tool.Lockfile + ")"
		}
		fmt.Fprintf(a.stdout, "%-7s %-24s %s\n", tool.Ecosystem, tool.Variant, mode)
		if len(tool.Markers) > 0 {
			fmt.Fprintf(a.stdout, "        markers: %s\n", strings.Join(tool.Markers, ", "))
		}
		for _, w := range tool.Warnings {
			fmt.Fprintf(a.stdout, "        ! %s\n", w)
		}
	}
	return nil
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}
