package main

import (
	"os"

	"github.com/dusk-indust/polydeps/internal/dispatch"
	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	if _, ok := a.stderr.(*os.File); !ok {
		a.stderr = &lockedWriter{w: a.stderr}
	}
	rootCmd := &cobra.Command{
		Use:   "polydeps",
		Short: "Install, build and test polyglot projects with the right tool",
		Long: `polydeps picks the package manager or toolchain each ecosystem of a
project uses (node, rust, python) from its lockfiles and config files,
installs and builds only when inputs changed, and exposes the same verbs
everywhere.

Settings come from polydeps.yml, then POLYDEPS_* variables, then flags.
Run "polydeps help <ecosystem>" for the rules of one ecosystem.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.initLogging()
		},
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.flags.dir, "dir", "C", ".", "Project directory")
	pf.StringSliceVarP(&a.flags.ecosystems, "ecosystem", "e", nil, "Ecosystems to act on (repeatable; default: detect)")
	pf.StringVar(&a.flags.toolchain, "toolchain", "", "Rust toolchain (overrides rust-toolchain.toml)")
	pf.StringVar(&a.flags.profile, "profile", "", "Build profile (dev, release or a custom cargo profile)")
	pf.BoolVar(&a.flags.release, "release", false, "Shorthand for --profile release")
	pf.StringSliceVar(&a.flags.features, "features", nil, "Cargo features (comma-separated, repeatable)")
	pf.StringVar(&a.flags.target, "target", "", "Target triple")
	pf.StringVar(&a.flags.outputDir, "output-dir", "", "Directory for build outputs and stamps")
	pf.BoolVar(&a.flags.denyWarnings, "deny-warnings", true, "Treat lint warnings as errors")
	pf.BoolVar(&a.flags.parallel, "parallel", false, "Run ecosystems concurrently")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Debug logging and progress output")
	pf.StringVar(&a.flags.logFormat, "log-format", "text", "Log format: text|json")

	rootCmd.AddGroup(
		&cobra.Group{ID: "verbs", Title: "Verbs:"},
		&cobra.Group{ID: "rust", Title: "Rust verbs:"},
		&cobra.Group{ID: "inspect", Title: "Inspect:"},
	)

	for _, action := range dispatch.CommonActions {
		rootCmd.AddCommand(newVerbCommand(a, action, "verbs"))
	}
	for _, action := range dispatch.RustActions {
		rootCmd.AddCommand(newVerbCommand(a, action, "rust"))
	}

	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Show which install and build stamps are up to date",
		GroupID: "inspect",
		Args:    cobra.NoArgs,
		RunE:    a.runStatus,
	}
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")

	detectCmd := &cobra.Command{
		Use:     "detect",
		Short:   "Show the tool each ecosystem resolves to",
		GroupID: "inspect",
		Args:    cobra.NoArgs,
		RunE:    a.runDetect,
	}
	detectCmd.Flags().Bool("json", false, "Print machine-readable detection output")

	graphCmd := &cobra.Command{
		Use:     "graph",
		Short:   "Print the action graph with up-to-date state",
		GroupID: "inspect",
		Args:    cobra.NoArgs,
		RunE:    a.runGraph,
	}
	graphCmd.Flags().String("format", "mermaid", "Output format: mermaid|json")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run install whenever a lockfile or manifest changes",
		Args:  cobra.NoArgs,
		RunE:  a.runWatch,
	}

	serveCmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve run_action, get_status and detect_tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE:  a.runServeMCP,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("polydeps %s\n", a.version)
		},
	}

	rootCmd.AddCommand(statusCmd, detectCmd, graphCmd, watchCmd, serveCmd, versionCmd)
	rootCmd.SetHelpCommand(newHelpCommand())
	return rootCmd
}
