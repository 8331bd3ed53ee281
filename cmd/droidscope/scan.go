package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"droidscope/internal/delivery"
	"droidscope/internal/logging"
	"droidscope/internal/logsource"
	"droidscope/internal/session"
	"droidscope/internal/settings"
)

func newScanCmd(root *rootOptions) *cobra.Command {
	var (
		dryRun  bool
		noDelay bool
	)
	cmd := &cobra.Command{
		Use:     "scan [file|-]",
		Short:   "Run one session over a log file or stdin until it ends",
		Example: "  droidscope scan --dry-run logcat.txt\n  adb logcat -v time | droidscope scan -",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(nil)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

			src := logsource.NewReader("stdin", cmd.InOrStdin())
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = logsource.NewReader("file", f)
			}

			store, err := settings.Open(cfg.SettingsPath)
			if err != nil {
				return err
			}
			var sink session.SinkFactory
			if dryRun {
				sink = dryRunSink(delivery.NewDryRun(cmd.OutOrStdout()))
			}
			scfg := sessionConfig(cfg, store, func() (logsource.LineSource, error) { return src, nil }, sink, log)
			if noDelay {
				scfg.ZoneStartDelay = session.NoDelay
			}
			sess := session.New(scfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := sess.Start(ctx); err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				sess.Stop()
			}()

			err = sess.Wait()
			st := sess.Status()
			var events uint64
			for _, n := range st.Events {
				events += n
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "scanned %s lines: %d candidates, %d malformed, %d events, %d delivered, %d failed\n",
				humanize.Comma(int64(st.LinesRead)), st.Candidates, st.Malformed, events, st.DeliveriesOK, st.DeliveriesFailed)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print payloads instead of posting them")
	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "Do not pause before zone-started notifications")
	return cmd
}
