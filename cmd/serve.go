package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/wowhead-parser/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			a, err := server.Build(cmd.Context(), e.cfg, e.logger, server.Options{})
			if err != nil {
				return err
			}
			return a.Serve(cmd.Context())
		},
	}
}
