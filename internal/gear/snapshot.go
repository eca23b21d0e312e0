// Package gear reads the raider gear snapshot: a JSON file of every
// raider's currently equipped items and per-tier token piece counts,
// produced by a separate fetch step against the armory.
package gear

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// EquippedItem is one equipped item in a raider's snapshot entry.
type EquippedItem struct {
	ItemName string `json:"item_name"`
	Ilvl     int    `json:"ilvl"`
}

type raiderEntry struct {
	hasError bool
	// equipped is keyed by snapshot slot name; dual slots (finger, trinket)
	// carry two entries.
	equipped        map[string][]EquippedItem
	tierTokenCounts map[string]int
}

// Snapshot is a loaded gear snapshot. Lookups are case-insensitive on raider
// name.
type Snapshot struct {
	CreatedAt  time.Time
	ServerSlug string
	raiders    map[string]raiderEntry
}

// Load reads and parses a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gear snapshot: %w", err)
	}

	var raw struct {
		CreatedAt  string `json:"created_at"`
		ServerSlug string `json:"server_slug"`
		Raiders    map[string]struct {
			Equipped        map[string]json.RawMessage `json:"equipped"`
			TierTokenCounts map[string]int             `json:"tier_token_counts"`
		} `json:"raiders"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing gear snapshot: %w", err)
	}

	s := &Snapshot{
		ServerSlug: raw.ServerSlug,
		raiders:    make(map[string]raiderEntry, len(raw.Raiders)),
	}
	if raw.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot created_at: %w", err)
		}
		s.CreatedAt = t
	}

	for name, rr := range raw.Raiders {
		entry := raiderEntry{
			equipped:        make(map[string][]EquippedItem),
			tierTokenCounts: rr.TierTokenCounts,
		}
		for slot, value := range rr.Equipped {
			if slot == "error" {
				entry.hasError = true
				continue
			}
			items, err := parseSlotValue(value)
			if err != nil {
				return nil, fmt.Errorf("parsing equipped slot %q for %s: %w", slot, name, err)
			}
			if len(items) > 0 {
				entry.equipped[slot] = items
			}
		}
		s.raiders[strings.ToLower(name)] = entry
	}
	return s, nil
}

// parseSlotValue accepts both forms a slot takes in the file: a single item
// object, or a list of items for dual slots.
func parseSlotValue(value json.RawMessage) ([]EquippedItem, error) {
	var list []EquippedItem
	if err := json.Unmarshal(value, &list); err == nil {
		out := list[:0]
		for _, item := range list {
			if item.Ilvl > 0 || item.ItemName != "" {
				out = append(out, item)
			}
		}
		return out, nil
	}
	var single EquippedItem
	if err := json.Unmarshal(value, &single); err != nil {
		return nil, err
	}
	if single.Ilvl == 0 && single.ItemName == "" {
		return nil, nil
	}
	return []EquippedItem{single}, nil
}

// Age returns how old the snapshot is.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.CreatedAt)
}

// Stale reports whether the snapshot is older than maxAge. A snapshot with
// no timestamp is treated as stale.
func (s *Snapshot) Stale(now time.Time, maxAge time.Duration) bool {
	if s.CreatedAt.IsZero() {
		return true
	}
	return s.Age(now) > maxAge
}

// RaiderCount returns the number of raiders in the snapshot.
func (s *Snapshot) RaiderCount() int {
	return len(s.raiders)
}

func (s *Snapshot) entry(raider string) (raiderEntry, bool) {
	entry, ok := s.raiders[strings.ToLower(raider)]
	if !ok || entry.hasError {
		return raiderEntry{}, false
	}
	return entry, true
}

// EquippedIlvls returns the item levels currently equipped in the slot the
// catalog slot name maps to. Dual slots (finger, trinket) and dual-wielded
// one-handers yield two values. nil means no usable data for the raider.
func (s *Snapshot) EquippedIlvls(raider, catalogSlot string) []int {
	entry, ok := s.entry(raider)
	if !ok || catalogSlot == "" {
		return nil
	}
	slot := strings.ToLower(catalogSlot)

	switch slot {
	case "finger", "trinket":
		return ilvls(entry.equipped[slot]...)
	case "one-hand":
		// A one-hander can replace either weapon of a dual-wielder.
		var out []int
		out = append(out, ilvls(entry.equipped["main_hand"]...)...)
		out = append(out, ilvls(entry.equipped["off_hand"]...)...)
		return out
	case "two-hand", "main hand":
		return ilvls(entry.equipped["main_hand"]...)
	case "held in off-hand", "off hand", "shield":
		return ilvls(entry.equipped["off_hand"]...)
	case "ranged", "relic", "libram", "totem", "idol", "thrown":
		return ilvls(entry.equipped["ranged"]...)
	}

	if key := NormalizeSlot(catalogSlot); key != "" {
		return ilvls(entry.equipped[key]...)
	}
	return nil
}

func ilvls(items ...EquippedItem) []int {
	var out []int
	for _, item := range items {
		if item.Ilvl > 0 {
			out = append(out, item.Ilvl)
		}
	}
	return out
}

// TierTokenCount returns how many set pieces of the given tier version the
// raider has equipped. ok=false means the snapshot has no entry for the
// raider.
func (s *Snapshot) TierTokenCount(raider, tierVersion string) (int, bool) {
	entry, ok := s.entry(raider)
	if !ok {
		return 0, false
	}
	return entry.tierTokenCounts[tierVersion], true
}
