// Package extract parses rich-presence fragments into observed values.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"droidscope/internal/jsoncodec"
)

// EquippedPrefix marks a state string that names the equipped item.
const EquippedPrefix = "Equipped "

// ErrMalformedFragment reports a fragment that is not valid JSON. Callers
// drop the fragment and keep going.
var ErrMalformedFragment = errors.New("malformed fragment")

// Extracted holds the values observed in one fragment. Empty means absent.
type Extracted struct {
	EquippedItem string
	Zone         string
}

// Empty reports whether neither value was observed.
func (e Extracted) Empty() bool { return e.EquippedItem == "" && e.Zone == "" }

// Extract decodes the first JSON object in fragment. Text after the object is
// ignored. ok is false when the object has no "data" object. Non-string
// values where strings are expected read as empty.
func Extract(fragment string) (ev Extracted, ok bool, err error) {
	var root map[string]any
	if err := jsoncodec.Decode(strings.NewReader(fragment), &root); err != nil {
		return Extracted{}, false, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
	}
	data, isObj := root["data"].(map[string]any)
	if !isObj {
		return Extracted{}, false, nil
	}
	state, _ := data["state"].(string)
	zone := ""
	if img, isObj := data["largeImage"].(map[string]any); isObj {
		zone, _ = img["hoverText"].(string)
	}
	return Extracted{EquippedItem: NormalizeItem(state), Zone: zone}, true, nil
}

// NormalizeItem strips EquippedPrefix, surrounding whitespace and one layer
// of double quotes. Strings without the prefix are returned unchanged.
func NormalizeItem(state string) string {
	if !strings.HasPrefix(state, EquippedPrefix) {
		return state
	}
	s := strings.TrimSpace(strings.TrimPrefix(state, EquippedPrefix))
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSpace(s)
}
