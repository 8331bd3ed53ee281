// Package tracker remembers the last observed item and zone of a session and
// turns new observations into domain events.
package tracker

import (
	"strings"
	"time"

	"droidscope/internal/extract"
)

// Kind names a domain event variant.
type Kind string

const (
	KindItemEquipped Kind = "item_equipped"
	KindZoneEnded    Kind = "zone_ended"
	KindZoneStarted  Kind = "zone_started"
)

// Event is one of ItemEquipped, ZoneEnded or ZoneStarted.
type Event interface {
	Kind() Kind
	// At is when the event was constructed.
	At() time.Time
	isEvent()
}

// ItemEquipped reports a newly equipped item.
type ItemEquipped struct {
	Item string
	Time time.Time
}

// ZoneEnded reports that the previous zone is over.
type ZoneEnded struct {
	Zone string
	Time time.Time
}

// ZoneStarted reports a new zone. MentionEveryone is set for high-priority zones.
type ZoneStarted struct {
	Zone            string
	MentionEveryone bool
	Time            time.Time
}

func (ItemEquipped) Kind() Kind { return KindItemEquipped }
func (ZoneEnded) Kind() Kind    { return KindZoneEnded }
func (ZoneStarted) Kind() Kind  { return KindZoneStarted }

func (e ItemEquipped) At() time.Time { return e.Time }
func (e ZoneEnded) At() time.Time    { return e.Time }
func (e ZoneStarted) At() time.Time  { return e.Time }

func (ItemEquipped) isEvent() {}
func (ZoneEnded) isEvent()    {}
func (ZoneStarted) isEvent()  {}

// ObservedState is the last value seen for each tracked field. One instance
// lives for one session and is only touched by the pipeline goroutine.
type ObservedState struct {
	LastEquippedItem string
	LastZone         string
}

// Differ compares observations against an ObservedState.
type Differ struct {
	highPriority map[string]struct{}
	now          func() time.Time
}

// NewDiffer returns a Differ that flags the given zone names (exact,
// case-sensitive) as high priority.
func NewDiffer(highPriorityZones []string) *Differ {
	hp := make(map[string]struct{}, len(highPriorityZones))
	for _, z := range highPriorityZones {
		hp[z] = struct{}{}
	}
	return &Differ{highPriority: hp, now: time.Now}
}

// IsHighPriority reports whether zone triggers a broadcast mention.
func (d *Differ) IsHighPriority(zone string) bool {
	_, ok := d.highPriority[zone]
	return ok
}

// Diff updates state with ex and returns the resulting events in delivery
// order: item, zone ended, zone started. Blank values are ignored.
func (d *Differ) Diff(state *ObservedState, ex extract.Extracted) []Event {
	var out []Event
	now := d.now()

	if item := ex.EquippedItem; !blank(item) && item != state.LastEquippedItem {
		out = append(out, ItemEquipped{Item: item, Time: now})
		state.LastEquippedItem = item
	}

	if zone := ex.Zone; !blank(zone) && zone != state.LastZone {
		if state.LastZone != "" {
			out = append(out, ZoneEnded{Zone: state.LastZone, Time: now})
		}
		out = append(out, ZoneStarted{Zone: zone, MentionEveryone: d.IsHighPriority(zone), Time: now})
		state.LastZone = zone
	}
	return out
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
