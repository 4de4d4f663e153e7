package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/app"
	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/server"
	"github.com/JakeFAU/wowhead-parser/internal/worker"
)

type dumpFlags struct {
	parser   string
	locale   string
	single   int64
	list     string
	rangeArg string
}

func newDumpCmd(v *viper.Viper) *cobra.Command {
	var flags dumpFlags
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Fetch entries and write a dump",
		Long: `Fetches one entry (--single), every entry of a WELF list (--list) or an
inclusive ID range (--range A-B) with the chosen parser and stores the
dump under output.dir (or the configured GCS bucket). Ctrl-C stops the run
after the entry in flight; the partial dump is still written.`,
		Example: `  wowhead-parser dump --parser "NPC names" --single 448
  wowhead-parser dump --parser "Item names" --locale de. --list elwynn.welf
  wowhead-parser dump --parser "Quest texts" --range 1-500 --out ./dumps`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			return runDump(cmd, req)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.parser, "parser", "p", "", "parser display name (see the parsers command)")
	f.StringVar(&flags.locale, "locale", "", "host prefix such as de. or fr. (default www.)")
	f.Int64Var(&flags.single, "single", 0, "fetch a single entry ID")
	f.StringVar(&flags.list, "list", "", "WELF file, relative to entry_list.dir or a path")
	f.StringVar(&flags.rangeArg, "range", "", "inclusive entry range A-B")
	f.String("out", "", "output directory for dumps (overrides output.dir)")
	mustBind(v, "output.dir", f.Lookup("out"))
	cmd.MarkFlagsMutuallyExclusive("single", "list", "range")
	cmd.MarkFlagsOneRequired("single", "list", "range")
	return cmd
}

func (f dumpFlags) request() (app.Request, error) {
	req := app.Request{Parser: f.parser, Locale: f.locale}
	switch {
	case f.list != "":
		req.Mode = crawler.ModeList
		req.ListFile = f.list
	case f.rangeArg != "":
		start, end, err := parseRange(f.rangeArg)
		if err != nil {
			return app.Request{}, err
		}
		req.Mode = crawler.ModeRange
		req.Start, req.End = start, end
	default:
		req.Mode = crawler.ModeSingle
		req.Value = f.single
	}
	return req, nil
}

// parseRange reads "A-B" into its bounds. Ordering is checked by the run
// service so the error matches the API's.
func parseRange(raw string) (uint32, uint32, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return 0, 0, fmt.Errorf("range %q must look like A-B", raw)
	}
	start, err := strconv.ParseUint(strings.TrimSpace(left), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("range start %q: %w", left, err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(right), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("range end %q: %w", right, err)
	}
	return uint32(start), uint32(end), nil
}

func runDump(cmd *cobra.Command, req app.Request) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := server.Build(ctx, e.cfg, e.logger, server.Options{AllowExternalLists: true})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(ctx); cerr != nil {
			e.logger.Warn("shutdown failed", zap.Error(cerr))
		}
	}()

	run, err := a.Service().Prepare(ctx, req)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(run.Worker.Total(),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(req.Parser),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigCh)
		close(done)
	}()
	go func() {
		select {
		case <-sigCh:
			// A second interrupt gets the default behaviour and kills the process.
			signal.Stop(sigCh)
			bar.Describe(req.Parser + " (stopping)")
			run.Stop()
		case <-done:
		}
	}()

	rec, err := a.Service().Drive(ctx, run, func(worker.Progress) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s %s: %d/%d entries fetched, %d failed\n", rec.ID, rec.State, rec.Done, rec.Total, rec.Failed)
	fmt.Fprintln(out, rec.OutputURI)
	if rec.State == crawler.StateAborted {
		return errors.New("run stopped before all entries were fetched; partial dump written")
	}
	return nil
}
