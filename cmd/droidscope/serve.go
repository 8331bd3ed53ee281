package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"droidscope/internal/config"
	"droidscope/internal/httpapi"
	"droidscope/internal/logging"
	"droidscope/internal/logsource"
	"droidscope/internal/session"
	"droidscope/internal/settings"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr        string
		autostart   bool
		corsOrigins string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API and the monitoring session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(func(c *config.Config) {
				if addr != "" {
					c.Addr = addr
				}
				if autostart {
					c.Autostart = true
				}
				if corsOrigins != "" {
					c.CORSEnabled = true
					c.CORSOrigins = splitCSV(corsOrigins)
				}
			})
			if err != nil {
				return err
			}
			return serve(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envStr("DROIDSCOPE_ADDR", ""), "HTTP listen address, e.g. 127.0.0.1:8765")
	cmd.Flags().BoolVar(&autostart, "autostart", false, "Start a monitoring session immediately")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	return cmd
}

func serve(cmd *cobra.Command, cfg config.Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	httpapi.SetLogger(log)
	if logging.ParseLevel(cfg.LogLevel) <= zerolog.DebugLevel {
		httpapi.SetRequestLogLevel("info")
	}
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return err
	}
	stdin := cmd.InOrStdin()
	sess := session.New(sessionConfig(cfg, store, func() (logsource.LineSource, error) {
		return logsource.Select(cfg, stdin)
	}, nil, log))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(&httpapi.Controller{Session: sess, Store: store}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Autostart {
		if err := sess.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("autostart failed; start the session via POST /session/start")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("source", cfg.Source).Str("settings", store.Path()).Msg("droidscope listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	sess.Stop()
	_ = sess.Wait()
	return serveErr
}
