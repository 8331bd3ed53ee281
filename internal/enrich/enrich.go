// Package enrich holds the static display metadata attached to notifications:
// colour, thumbnail and rarity per item and per zone.
//
// Tables are loaded once and never mutated, so a *Store is safe to share
// between goroutines without locking.
package enrich

import (
	"fmt"
	"io"
	"os"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"droidscope/internal/common/fsutil"
	"droidscope/internal/jsoncodec"
)

// Record is one table entry. Zero fields mean "not provided".
type Record struct {
	Key      string `json:"-"`
	ColorHex string `json:"colour"`
	ImageURL string `json:"img_url"`
	Rarity   int64  `json:"rarity"`
}

// Color parses ColorHex ("#RRGGBB" or "RRGGBB") into 0xRRGGBB.
func (r Record) Color() (int, bool) {
	return ParseColor(r.ColorHex)
}

// ParseColor converts a hex colour string to an integer.
func ParseColor(hex string) (int, bool) {
	h := strings.TrimSpace(hex)
	if h == "" {
		return 0, false
	}
	if !strings.HasPrefix(h, "#") {
		h = "#" + h
	}
	c, err := colorful.Hex(h)
	if err != nil {
		return 0, false
	}
	r, g, b := c.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b), true
}

// Store answers lookups against the item and zone tables.
type Store struct {
	items map[string]Record
	zones map[string]Record
}

// New builds a Store. Item keys are lowercased; zone keys are kept verbatim.
func New(items, zones map[string]Record) *Store {
	s := &Store{
		items: make(map[string]Record, len(items)),
		zones: make(map[string]Record, len(zones)),
	}
	for k, r := range items {
		key := ItemKey(k)
		r.Key = key
		s.items[key] = r
	}
	for k, r := range zones {
		r.Key = k
		s.zones[k] = r
	}
	return s
}

// Empty returns a Store where every lookup misses.
func Empty() *Store { return New(nil, nil) }

// ItemKey normalizes an item name for lookup.
func ItemKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Item looks up an item by case-insensitive name.
func (s *Store) Item(name string) (Record, bool) {
	r, ok := s.items[ItemKey(name)]
	return r, ok
}

// Zone looks up a zone by exact name.
func (s *Store) Zone(name string) (Record, bool) {
	r, ok := s.zones[name]
	return r, ok
}

// Len returns the number of items and zones loaded.
func (s *Store) Len() (items, zones int) { return len(s.items), len(s.zones) }

// Decode reads one table: a JSON object of name -> record.
func Decode(r io.Reader) (map[string]Record, error) {
	var table map[string]Record
	if err := jsoncodec.Decode(r, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadTable reads a table file. An empty path yields an empty table.
func LoadTable(path string) (map[string]Record, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]Record{}, nil
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	table, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("parse table %s: %w", p, err)
	}
	return table, nil
}

// Load reads both tables and builds a Store.
func Load(itemsPath, zonesPath string) (*Store, error) {
	items, err := LoadTable(itemsPath)
	if err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	zones, err := LoadTable(zonesPath)
	if err != nil {
		return nil, fmt.Errorf("zones: %w", err)
	}
	return New(items, zones), nil
}
