package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"droidscope/internal/common/fsutil"
	"droidscope/internal/logsource"
)

func newProbeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Show which log source a session would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(nil)
			if err != nil {
				return err
			}
			src, err := logsource.Select(cfg, cmd.InOrStdin())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source: %s\n", src.Name())
			if cs, ok := src.(*logsource.CommandSource); ok {
				fmt.Fprintf(out, "command: %s\n", strings.Join(cs.Command(), " "))
			}
			for _, tbl := range []struct{ name, path string }{{"items", cfg.ItemsPath}, {"zones", cfg.ZonesPath}} {
				if tbl.path == "" {
					continue
				}
				p, err := fsutil.ExpandHome(tbl.path)
				if err != nil {
					return err
				}
				state := "ok"
				if !fsutil.PathExists(p) {
					state = "missing"
				}
				fmt.Fprintf(out, "%s table: %s (%s)\n", tbl.name, p, state)
			}
			return nil
		},
	}
}
