package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/wowhead-parser/internal/entrylist"
)

func newWelfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "welf",
		Short: "Inspect WELF entry lists",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List WELF files under entry_list.dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			files, err := entrylist.Discover(e.cfg.EntryList.Dir, e.cfg.EntryList.Extension)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <file>",
		Short: "Print the entry count and IDs of a WELF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			list, err := entrylist.Load(entrylist.Resolve(e.cfg.EntryList.Dir, args[0]))
			if err != nil {
				return err
			}
			ids := list.IDs()
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = strconv.FormatUint(uint64(id), 10)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d entries\n", list.Count())
			fmt.Fprintln(out, strings.Join(parts, ","))
			return nil
		},
	})
	return cmd
}
