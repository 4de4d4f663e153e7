// Package cmd defines and implements the CLI commands for the wowhead-parser
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/config"
	"github.com/JakeFAU/wowhead-parser/internal/logging"
)

type envKeyType struct{}

// env is what the root command hands to its subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "wowhead-parser",
		Short: "Fetches WoWHead entry pages and turns them into SQL dumps.",
		Long: `wowhead-parser downloads entry pages (NPCs, items, objects, quests) for a
single ID, a WELF entry list or an ID range, runs them through a site parser
and writes the fragments to a dump file. It can also serve the same runs over
an HTTP API.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKeyType{}, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, err := resolveEnv(cmd.Context()); err == nil {
				_ = e.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: config.yaml in ., /etc/wowhead-parser or $HOME/.wowhead-parser)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-dev", true, "human readable development logging")
	flags.String("entry-list-dir", "", "directory holding WELF entry lists")
	flags.String("fetcher", "", "fetcher kind: colly, resty or headless")
	mustBind(v, "logging.level", flags.Lookup("log-level"))
	mustBind(v, "logging.development", flags.Lookup("log-dev"))
	mustBind(v, "entry_list.dir", flags.Lookup("entry-list-dir"))
	mustBind(v, "fetcher.kind", flags.Lookup("fetcher"))

	cmd.AddCommand(
		newDumpCmd(v),
		newParsersCmd(),
		newWelfCmd(),
		newServeCmd(),
	)
	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	if ctx == nil {
		return nil, errors.New("command context not set")
	}
	e, ok := ctx.Value(envKeyType{}).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration not loaded")
	}
	return e, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
