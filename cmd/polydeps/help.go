package main

import (
	"fmt"

	"github.com/dusk-indust/polydeps/internal/detect"
	"github.com/dusk-indust/polydeps/internal/helpdata"
	"github.com/spf13/cobra"
)

// newHelpCommand replaces cobra's help so "help <ecosystem>" prints the
// ecosystem's rules; "help <command>" keeps its usual meaning.
func newHelpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "help [ecosystem|command]",
		Short: "Help for an ecosystem (node, rust, python) or a command",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			if len(args) == 0 {
				return root.Help()
			}
			if eco, ok := detect.ParseEcosystem(args[0]); ok {
				text, err := helpdata.Text(eco)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			target, _, err := root.Find(args)
			if err != nil || target == root {
				return fmt.Errorf("unknown help topic %q", args[0])
			}
			return target.Help()
		},
	}
}
