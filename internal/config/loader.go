package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"droidscope/internal/common/fsutil"
	"droidscope/internal/jsoncodec"
)

// Source modes accepted by Config.Source.
const (
	SourceAuto   = "auto"
	SourceDirect = "direct"
	SourceBroker = "broker"
	SourceFile   = "file"
	SourceStdin  = "stdin"
)

// Defaults applied by WithDefaults when the corresponding field is unset.
const (
	DefaultAddr            = "127.0.0.1:8765"
	DefaultSettingsPath    = "~/.config/droidscope/settings.toml"
	DefaultZoneStartDelay  = time.Second
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultMaxInflight     = 8
	DefaultMaxBodyBytes    = 64 << 10
)

var (
	DefaultDirectCommand     = []string{"logcat", "-v", "time"}
	DefaultBrokerCommand     = []string{"su", "-c", "logcat -v time"}
	DefaultAccessCheck       = []string{"logcat", "-d", "-v", "time", "-t", "50"}
	DefaultHighPriorityZones = []string{"GLITCHED", "DREAMSPACE"}
)

// Duration is a time.Duration that reads as "1s", "250ms" in every config format.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.Duration.String()), nil }

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	SettingsPath string `json:"settings_path" yaml:"settings_path" toml:"settings_path"`
	ItemsPath    string `json:"items_path" yaml:"items_path" toml:"items_path"`
	ZonesPath    string `json:"zones_path" yaml:"zones_path" toml:"zones_path"`

	Source        string   `json:"source" yaml:"source" toml:"source"`
	DirectCommand []string `json:"direct_command" yaml:"direct_command" toml:"direct_command"`
	BrokerCommand []string `json:"broker_command" yaml:"broker_command" toml:"broker_command"`
	SourceFile    string   `json:"source_file" yaml:"source_file" toml:"source_file"`

	// AccessCheck dumps a few recent lines to test whether the direct command
	// may read other processes' logs. An explicit empty list skips the check.
	AccessCheck []string `json:"access_check" yaml:"access_check" toml:"access_check"`

	ZoneStartDelay    Duration `json:"zone_start_delay" yaml:"zone_start_delay" toml:"zone_start_delay"`
	DeliveryTimeout   Duration `json:"delivery_timeout" yaml:"delivery_timeout" toml:"delivery_timeout"`
	MaxInflight       int      `json:"max_inflight" yaml:"max_inflight" toml:"max_inflight"`
	HighPriorityZones []string `json:"high_priority_zones" yaml:"high_priority_zones" toml:"high_priority_zones"`

	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	Autostart   bool     `json:"autostart" yaml:"autostart" toml:"autostart"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	resolved, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(resolved)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := jsoncodec.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// WithDefaults returns a copy with every unset field replaced by its default
// and the source mode validated.
func (c Config) WithDefaults() (Config, error) {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if strings.TrimSpace(c.SettingsPath) == "" {
		c.SettingsPath = DefaultSettingsPath
	}
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = SourceAuto
	}
	switch c.Source {
	case SourceAuto, SourceDirect, SourceBroker, SourceStdin:
	case SourceFile:
		if strings.TrimSpace(c.SourceFile) == "" {
			return c, fmt.Errorf("source %q requires source_file", SourceFile)
		}
	default:
		return c, fmt.Errorf("unknown source %q", c.Source)
	}
	if len(c.DirectCommand) == 0 {
		c.DirectCommand = append([]string(nil), DefaultDirectCommand...)
	}
	if len(c.BrokerCommand) == 0 {
		c.BrokerCommand = append([]string(nil), DefaultBrokerCommand...)
	}
	if c.AccessCheck == nil {
		c.AccessCheck = append([]string(nil), DefaultAccessCheck...)
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.ZoneStartDelay.Duration <= 0 {
		c.ZoneStartDelay.Duration = DefaultZoneStartDelay
	}
	if c.DeliveryTimeout.Duration <= 0 {
		c.DeliveryTimeout.Duration = DefaultDeliveryTimeout
	}
	if c.MaxInflight <= 0 {
		c.MaxInflight = DefaultMaxInflight
	}
	if c.HighPriorityZones == nil {
		c.HighPriorityZones = append([]string(nil), DefaultHighPriorityZones...)
	}
	return c, nil
}
