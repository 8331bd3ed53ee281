package session

import (
	"time"

	"github.com/rs/zerolog"

	"droidscope/internal/delivery"
	"droidscope/internal/logsource"
	"droidscope/internal/settings"
)

// DefaultZoneStartDelay separates a ZoneEnded dispatch from the ZoneStarted
// that follows it.
const DefaultZoneStartDelay = time.Second

// SinkFactory builds the delivery sink for one session from its settings
// snapshot. Sinks that observe delivery outcomes report them to onResult.
type SinkFactory func(v settings.Values, onResult func(delivery.Result)) delivery.Sink

// Config wires a Session. Source is required.
type Config struct {
	// Source is called on every Start to pick the access path.
	Source func() (logsource.LineSource, error)
	// Settings is read once per Start. Nil reads as empty values.
	Settings *settings.Store

	ItemsPath         string
	ZonesPath         string
	HighPriorityZones []string

	// ZoneStartDelay <= 0 uses DefaultZoneStartDelay. Use NoDelay to disable.
	ZoneStartDelay time.Duration

	// Sink nil means a webhook sink posting to the configured URL.
	Sink            SinkFactory
	DeliveryTimeout time.Duration
	MaxInflight     int

	Logger zerolog.Logger
}

// NoDelay disables the pause before ZoneStarted dispatches.
const NoDelay time.Duration = -1

func (c Config) zoneStartDelay() time.Duration {
	switch {
	case c.ZoneStartDelay == NoDelay:
		return 0
	case c.ZoneStartDelay <= 0:
		return DefaultZoneStartDelay
	default:
		return c.ZoneStartDelay
	}
}

func (c Config) newSink(v settings.Values, onResult func(delivery.Result)) delivery.Sink {
	if c.Sink != nil {
		return c.Sink(v, onResult)
	}
	return delivery.NewWebhook(delivery.WebhookConfig{
		URL:         v.WebhookURL,
		Timeout:     c.DeliveryTimeout,
		MaxInflight: c.MaxInflight,
		Logger:      c.Logger,
		OnResult:    onResult,
	})
}
