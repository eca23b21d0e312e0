package engine

import (
	"log"
	"sort"
	"strings"
	"time"

	"lootcouncil/internal/domain"
)

// Resolution is the outcome of resolving one item name: the item group plus
// its eligible, metric-enriched candidates sorted by wishlist rank.
type Resolution struct {
	Item       domain.ResolvedItem
	Candidates []domain.Candidate

	// Prompt-construction hints derived during enrichment.
	HasCustomNotes bool
}

// Resolve maps the item name to its candidate pool. An unknown item returns
// *catalog.ItemNotFoundError; an empty pool is a valid resolution, not an
// error.
func (e *Engine) Resolve(itemName string) (*Resolution, error) {
	item, err := e.resolver.Resolve(itemName)
	if err != nil {
		return nil, err
	}
	refDay := e.referenceDay()

	notes, err := e.data.ItemNotes()
	if err != nil {
		return nil, err
	}
	item.PrioNote = itemNote(notes, item)

	wishlists, err := e.data.RaiderWishlists()
	if err != nil {
		return nil, err
	}
	profiles, err := e.data.RaiderProfiles()
	if err != nil {
		return nil, err
	}
	profileByName := make(map[string]domain.RaiderProfile, len(profiles))
	for _, p := range profiles {
		profileByName[strings.ToLower(p.Name)] = p
	}

	idSet := make(map[int]bool, len(item.ItemIDs))
	for _, id := range item.ItemIDs {
		idSet[id] = true
	}

	var candidates []domain.Candidate
	for raider, entries := range wishlists {
		for _, entry := range entries {
			if !idSet[entry.ItemID] {
				continue
			}
			// Received on or before the reference day means no longer a
			// candidate. A received flag with no parseable date does not
			// exclude the raider; it is carried as a note instead.
			flagWithoutDate := false
			if entry.ReceivedAt != nil && !entry.ReceivedAt.After(refDay) {
				break
			}
			if entry.IsReceived && entry.ReceivedAt == nil {
				flagWithoutDate = true
				log.Printf("eligibility received-flag-without-date raider=%s item=%s", raider, entry.ItemName)
			}

			c := domain.Candidate{
				Name:                    raider,
				ClassSpec:               "Unknown",
				Role:                    "Unknown",
				IsOffspec:               entry.IsOffspec,
				WishlistOrder:           entry.Order,
				ReceivedFlagWithoutDate: flagWithoutDate,
			}
			if p, ok := profileByName[strings.ToLower(raider)]; ok {
				c.ClassSpec = p.Class + "/" + p.Spec
				c.Role = p.Archetype
				c.IsAlt = p.IsAlt
			}
			candidates = append(candidates, c)
			break // one entry per raider
		}
	}

	// With alts hidden they are out of the running entirely.
	if !e.cfg.ShowAltStatus {
		kept := candidates[:0]
		for _, c := range candidates {
			if !c.IsAlt {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	// Name tie-break keeps the ordering stable across calls; the wishlist
	// map has no iteration order.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].WishlistOrder != candidates[j].WishlistOrder {
			return candidates[i].WishlistOrder < candidates[j].WishlistOrder
		}
		return candidates[i].Name < candidates[j].Name
	})

	res := &Resolution{Item: item, Candidates: candidates}
	if len(candidates) > 0 {
		if err := e.enrich(res, refDay); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// itemNote finds the guild priority note for the item, matching by canonical
// id first and falling back to the name.
func itemNote(notes []domain.ItemNote, item domain.ResolvedItem) string {
	var canonicalID int
	if len(item.ItemIDs) > 0 {
		canonicalID = item.ItemIDs[0]
	}
	for _, n := range notes {
		if n.ItemID == canonicalID && strings.TrimSpace(n.PrioNote) != "" {
			return n.PrioNote
		}
	}
	for _, n := range notes {
		if strings.EqualFold(n.Name, item.Name) && strings.TrimSpace(n.PrioNote) != "" {
			return n.PrioNote
		}
	}
	return ""
}

// enrich fills in every enabled metric for each candidate. Each metric is
// gated independently; disabled metrics touch no data source.
func (e *Engine) enrich(res *Resolution, refDay time.Time) error {
	cfg := e.cfg

	var attendance []domain.AttendanceRecord
	if cfg.ShowAttendance {
		var err error
		attendance, err = e.data.Attendance()
		if err != nil {
			return err
		}
	}

	var received map[string][]domain.ReceivedItem
	if cfg.ShowRecentLoot || cfg.ShowLastItemReceived {
		var err error
		received, err = e.data.RaiderReceived()
		if err != nil {
			return err
		}
	}

	showIlvl := cfg.IlvlComparisonEnabled() && e.gear != nil && res.Item.ItemLevel > 0
	showTierCounts := cfg.TierTokenCountsEnabled() && e.gear != nil && res.Item.TierVersion != ""
	showParses := cfg.ShowParses && e.parses != nil && cfg.ParseZoneID != 0

	for i := range res.Candidates {
		c := &res.Candidates[i]

		if cfg.ShowAttendance {
			c.AttendancePct = attendancePercentage(attendance, c.Name, refDay, cfg.AttendanceLookbackDays)
		}
		if cfg.ShowRecentLoot {
			c.RecentLoot = recentLootCount(receivedFor(received, c.Name), refDay, cfg.LootLookbackDays)
		}
		if showIlvl {
			c.Upgrade = e.ilvlUpgrade(c.Name, res.Item)
		}
		if showTierCounts {
			count, ok := e.gear.TierTokenCount(c.Name, res.Item.TierVersion)
			c.TierTokenCount = count
			c.HasTierCount = ok
		}
		if cfg.ShowLastItemReceived && res.Item.Slot != "" {
			c.LastForSlot = e.lastReceivedForSlot(receivedFor(received, c.Name), res.Item.Slot, refDay)
		}
		if showParses && e.shouldFetchParses(c.Role) {
			data := e.parses.GetOrFetch(c.Name, cfg.ParseZoneID, parseArchetype(c.Role))
			c.Parses = &data
			c.ParsesFetched = true
		}
		if cfg.ShowRaiderNotes {
			if note := e.raiderNotes[c.Name]; note != "" {
				c.Note = note
				res.HasCustomNotes = true
			}
		}
	}
	return nil
}

func receivedFor(received map[string][]domain.ReceivedItem, raider string) []domain.ReceivedItem {
	if items, ok := received[raider]; ok {
		return items
	}
	for name, items := range received {
		if strings.EqualFold(name, raider) {
			return items
		}
	}
	return nil
}
