// Package notify renders domain events into webhook payloads.
//
// Formatting is pure: no I/O, no errors. Missing enrichment data falls back
// to the Palette defaults.
package notify

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"droidscope/internal/enrich"
	"droidscope/internal/tracker"
)

// Tier maps a minimum rarity to an embed colour.
type Tier struct {
	Min   int64
	Color int
}

// Palette holds the product constants used when formatting.
type Palette struct {
	// Tiers must be sorted by Min, highest first.
	Tiers              []Tier
	ItemDefault        int
	ZoneEndedDefault   int
	ZoneStartedDefault int
	PlaceholderImage   string
	Footer             string
}

// DefaultPalette returns the colours and thresholds the notifications have
// always used.
func DefaultPalette() Palette {
	return Palette{
		Tiers: []Tier{
			{Min: 99_999_999, Color: 0xFF00FF},
			{Min: 10_000_000, Color: 0xFF4500},
			{Min: 1_000_000, Color: 0x9B59B6},
		},
		ItemDefault:        0xFFD700,
		ZoneEndedDefault:   0xAAAAAA,
		ZoneStartedDefault: 0x00BFFF,
		PlaceholderImage:   "https://via.placeholder.com/128?text=?",
		Footer:             "DroidScope",
	}
}

// TierColor returns the colour of the highest tier rarity reaches, or fallback.
func (p Palette) TierColor(rarity int64, fallback int) int {
	for _, t := range p.Tiers {
		if rarity >= t.Min {
			return t.Color
		}
	}
	return fallback
}

// RarityText renders "1 in 5,000,000", or "Unknown" for zero or negative rarity.
func RarityText(rarity int64) string {
	if rarity <= 0 {
		return "Unknown"
	}
	return "1 in " + humanize.Comma(rarity)
}

// TimestampText renders Discord relative and absolute timestamp markup.
func TimestampText(unix int64) string {
	return fmt.Sprintf("<t:%d:R> (<t:%d:T>)", unix, unix)
}

// Formatter turns tracker events into payloads.
type Formatter struct {
	store         *enrich.Store
	palette       Palette
	privateServer string
}

// NewFormatter uses store for enrichment; a nil store behaves as empty.
// privateServer is the reference attached to zone-started notifications.
func NewFormatter(store *enrich.Store, palette Palette, privateServer string) *Formatter {
	if store == nil {
		store = enrich.Empty()
	}
	return &Formatter{store: store, palette: palette, privateServer: strings.TrimSpace(privateServer)}
}

// Format renders ev. Unknown event types yield an empty payload.
func (f *Formatter) Format(ev tracker.Event) Payload {
	switch e := ev.(type) {
	case tracker.ItemEquipped:
		return f.item(e)
	case tracker.ZoneEnded:
		return f.zoneEnded(e)
	case tracker.ZoneStarted:
		return f.zoneStarted(e)
	default:
		return Payload{}
	}
}

func (f *Formatter) item(e tracker.ItemEquipped) Payload {
	rec, _ := f.store.Item(e.Item)
	fallback := f.palette.ItemDefault
	if c, ok := rec.Color(); ok {
		fallback = c
	}
	embed := Embed{
		Title:     "Aura Equipped - " + e.Item,
		Color:     f.palette.TierColor(rec.Rarity, fallback),
		Footer:    f.footer(),
		Thumbnail: f.thumbnail(rec),
		Fields:    []Field{{Name: "Rarity", Value: RarityText(rec.Rarity), Inline: true}},
	}
	return Payload{Embeds: []Embed{embed}}
}

func (f *Formatter) zoneEnded(e tracker.ZoneEnded) Payload {
	rec, _ := f.store.Zone(e.Zone)
	embed := Embed{
		Title:       "Biome Ended - " + e.Zone,
		Description: TimestampText(e.Time.Unix()),
		Color:       f.zoneColor(rec, f.palette.ZoneEndedDefault),
		Footer:      f.footer(),
		Thumbnail:   f.thumbnail(rec),
	}
	return Payload{Embeds: []Embed{embed}}
}

func (f *Formatter) zoneStarted(e tracker.ZoneStarted) Payload {
	rec, _ := f.store.Zone(e.Zone)
	ref := f.privateServer
	if ref == "" {
		ref = "Not set"
	}
	embed := Embed{
		Title:       "Biome Started - " + e.Zone,
		Description: TimestampText(e.Time.Unix()),
		Color:       f.zoneColor(rec, f.palette.ZoneStartedDefault),
		Footer:      f.footer(),
		Thumbnail:   f.thumbnail(rec),
		Fields:      []Field{{Name: "Private Server", Value: ref, Inline: false}},
	}
	p := Payload{Embeds: []Embed{embed}}
	if e.MentionEveryone {
		p.Content = MentionEveryone
	}
	return p
}

func (f *Formatter) zoneColor(rec enrich.Record, fallback int) int {
	if c, ok := rec.Color(); ok {
		return c
	}
	return fallback
}

func (f *Formatter) thumbnail(rec enrich.Record) *Thumbnail {
	url := strings.TrimSpace(rec.ImageURL)
	if url == "" {
		url = f.palette.PlaceholderImage
	}
	if url == "" {
		return nil
	}
	return &Thumbnail{URL: url}
}

func (f *Formatter) footer() *Footer {
	if f.palette.Footer == "" {
		return nil
	}
	return &Footer{Text: f.palette.Footer}
}
