package engine

import (
	"sort"
	"strings"
)

// ZoneItems lists the unique item names the zone drops, in processing
// order: regular equippable items sorted by tier ascending (untiered last),
// then tier tokens and exchange items alphabetically at the end.
func (e *Engine) ZoneItems(zoneName string) ([]string, error) {
	notes, err := e.data.ItemNotes()
	if err != nil {
		return nil, err
	}

	type tiered struct {
		name    string
		tier    int
		hasTier bool
		pos     int
	}
	seen := make(map[string]bool)
	var regular []tiered
	var tokens []string

	for _, note := range notes {
		if !strings.EqualFold(note.InstanceName, zoneName) {
			continue
		}
		if note.ItemID == 0 || seen[note.Name] {
			continue
		}

		if e.resolver.IsToken(note.Name) || e.resolver.IsExchange(note.Name) {
			tokens = append(tokens, note.Name)
			seen[note.Name] = true
			continue
		}

		rec, ok := e.catalog.Item(note.ItemID)
		if !ok {
			continue
		}
		slot := strings.ToLower(rec.Slot)
		if slot == "" || slot == "non-equippable" || slot == "bag" {
			continue
		}
		regular = append(regular, tiered{
			name:    note.Name,
			tier:    note.Tier,
			hasTier: note.HasTier,
			pos:     len(regular),
		})
		seen[note.Name] = true
	}

	sort.SliceStable(regular, func(i, j int) bool {
		a, b := regular[i], regular[j]
		if a.hasTier != b.hasTier {
			return a.hasTier // untiered items sink to the end
		}
		if !a.hasTier {
			return a.pos < b.pos
		}
		return a.tier < b.tier
	})
	sort.Slice(tokens, func(i, j int) bool {
		return strings.ToLower(tokens[i]) < strings.ToLower(tokens[j])
	})

	out := make([]string, 0, len(regular)+len(tokens))
	for _, item := range regular {
		out = append(out, item.name)
	}
	return append(out, tokens...), nil
}
