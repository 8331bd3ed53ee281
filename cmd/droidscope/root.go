package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"droidscope/internal/config"
	"droidscope/internal/delivery"
	"droidscope/internal/logsource"
	"droidscope/internal/session"
	"droidscope/internal/settings"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath        string
	logLevel          string
	logFormat         string
	settingsPath      string
	source            string
	sourceFile        string
	highPriorityZones string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "droidscope",
		Short: "Forward rich-presence changes from a device log to a Discord webhook",
		Long: `droidscope tails a device log stream, picks out the game client's
[BloxstrapRPC] rich-presence payloads and posts a webhook notification
whenever the equipped aura or the current biome changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags with environment variable defaults
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", envStr("DROIDSCOPE_CONFIG", ""), "Config file (.toml, .yaml, .yml or .json)")
	pf.StringVar(&opts.logLevel, "log-level", envStr("DROIDSCOPE_LOG_LEVEL", ""), "Log level: off|error|warn|info|debug")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: console|json")
	pf.StringVar(&opts.settingsPath, "settings", "", "Settings file holding the webhook URL")
	pf.StringVar(&opts.source, "source", "", "Log source: auto|direct|broker|file|stdin")
	pf.StringVar(&opts.sourceFile, "source-file", "", "Log file to follow when --source=file")
	pf.StringVar(&opts.highPriorityZones, "high-priority-zones", "", "Comma-separated zones that mention @everyone")

	cmd.AddCommand(
		newServeCmd(opts),
		newScanCmd(opts),
		newProbeCmd(opts),
		newSettingsCmd(opts),
	)
	return cmd
}

// load reads the config file if one was given, applies flag overrides and
// then defaults. override runs after the persistent flags are applied.
func (o *rootOptions) load(override func(*config.Config)) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.settingsPath != "" {
		cfg.SettingsPath = o.settingsPath
	}
	if o.source != "" {
		cfg.Source = o.source
	}
	if o.sourceFile != "" {
		cfg.SourceFile = o.sourceFile
	}
	if o.highPriorityZones != "" {
		cfg.HighPriorityZones = splitCSV(o.highPriorityZones)
	}
	if override != nil {
		override(&cfg)
	}
	return cfg.WithDefaults()
}

// sessionConfig maps the service config onto a session.Config. A nil sink
// keeps the webhook default.
func sessionConfig(cfg config.Config, store *settings.Store, src func() (logsource.LineSource, error), sink session.SinkFactory, log zerolog.Logger) session.Config {
	return session.Config{
		Source:            src,
		Settings:          store,
		ItemsPath:         cfg.ItemsPath,
		ZonesPath:         cfg.ZonesPath,
		HighPriorityZones: cfg.HighPriorityZones,
		ZoneStartDelay:    cfg.ZoneStartDelay.Duration,
		Sink:              sink,
		DeliveryTimeout:   cfg.DeliveryTimeout.Duration,
		MaxInflight:       cfg.MaxInflight,
		Logger:            log,
	}
}

// dryRunSink prints payloads instead of posting them.
func dryRunSink(d *delivery.DryRun) session.SinkFactory {
	return func(settings.Values, func(delivery.Result)) delivery.Sink { return d }
}
