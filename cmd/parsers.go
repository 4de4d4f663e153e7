package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/wowhead-parser/internal/parser"
	// Site parsers register themselves.
	_ "github.com/JakeFAU/wowhead-parser/internal/parser/wowhead"
)

func newParsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parsers",
		Short: "List registered parsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := parser.Default()
			for _, name := range registry.Names() {
				p, err := registry.New(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", name, parser.BaseAddress(p, ""))
			}
			return nil
		},
	}
}
