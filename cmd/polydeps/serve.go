package main

import (
	"io"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/invoke"
	"github.com/dusk-indust/polydeps/internal/mcptools"
	"github.com/dusk-indust/polydeps/internal/watch"
	"github.com/spf13/cobra"
)

// project adapts session.open to mcptools.Opener.
func (s *session) project(eco detect.Ecosystem) (mcptools.Project, error) {
	return s.open(eco)
}

func (a *app) runWatch(cmd *cobra.Command, _ []string) error {
	s, err := a.session(cmd)
	if err != nil {
		return err
	}
	orchs, err := s.openAll()
	if err != nil {
		return err
	}
	targets := make([]watch.Target, len(orchs))
	for i, o := range orchs {
		targets[i] = o
	}

	cfg := watch.DefaultConfig()
	if s.cfg.OutputDir != "" {
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, s.cfg.OutputDir)
	}
	w, err := watch.New(s.root, targets, cfg)
	if err != nil {
		return err
	}
	return w.Run(cmd.Context())
}

func (a *app) runServeMCP(cmd *cobra.Command, _ []string) error {
	// stdin and stdout carry the protocol: tools get no input and their
	// output goes to stderr.
	if a.invoker == nil {
		a.invoker = serveInvoker(a.stderr)
	}
	s, err := a.session(cmd)
	if err != nil {
		return err
	}
	svc := mcptools.NewService(s.root, s.ecosystems, s.project)
	return mcptools.RunStdio(cmd.Context(), mcptools.NewServer(svc))
}

func serveInvoker(stderr io.Writer) *invoke.ExecInvoker {
	return &invoke.ExecInvoker{Stdout: stderr, Stderr: stderr, WaitDelay: invoke.DefaultWaitDelay}
}
