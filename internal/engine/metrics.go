package engine

import (
	"strings"
	"time"

	"lootcouncil/internal/config"
	"lootcouncil/internal/domain"
	"lootcouncil/internal/gear"
)

// Metric enumerates the candidate metrics that participate in simple-policy
// rule ordering.
type Metric int

const (
	MetricAttendance Metric = iota
	MetricRecentLoot
	MetricWishlistPosition
	MetricParses
	MetricIlvlComparison
	MetricTierTokenCounts
	MetricLastItemReceived
)

var metricNames = map[Metric]string{
	MetricAttendance:       "attendance",
	MetricRecentLoot:       "recent_loot",
	MetricWishlistPosition: "wishlist_position",
	MetricParses:           "parses",
	MetricIlvlComparison:   "ilvl_comparison",
	MetricTierTokenCounts:  "tier_token_counts",
	MetricLastItemReceived: "last_item_received",
}

// AllMetrics is every metric in declaration order, used to backfill metrics
// missing from a configured order.
var AllMetrics = []Metric{
	MetricAttendance, MetricRecentLoot, MetricWishlistPosition,
	MetricParses, MetricIlvlComparison, MetricTierTokenCounts,
	MetricLastItemReceived,
}

func (m Metric) String() string { return metricNames[m] }

// ParseMetric maps a config identifier to its Metric.
func ParseMetric(name string) (Metric, bool) {
	for m, s := range metricNames {
		if s == name {
			return m, true
		}
	}
	return 0, false
}

// RuleText is the policy rule sentence for the metric in simple mode.
func (m Metric) RuleText() string {
	switch m {
	case MetricAttendance:
		return "Give preference to raiders with higher attendance percentage."
	case MetricRecentLoot:
		return "Give preference to raiders who have received fewer items recently."
	case MetricWishlistPosition:
		return "Give preference to raiders who ranked this item higher on their wishlist (lower position = more desired)."
	case MetricParses:
		return "Give preference to raiders with better parse performance."
	case MetricIlvlComparison:
		return "Give preference to raiders with a larger ilvl difference."
	case MetricTierTokenCounts:
		return "Prioritise raiders who are closer to completing 2 or 4 set tier bonus."
	case MetricLastItemReceived:
		return "Give preference to raiders who received an item for this slot longest ago."
	}
	return ""
}

// EnabledIn reports whether the metric participates given the configured
// toggles. The equipped-gear metrics additionally require the gear snapshot
// feature.
func (m Metric) EnabledIn(cfg config.Config) bool {
	switch m {
	case MetricAttendance:
		return cfg.ShowAttendance
	case MetricRecentLoot:
		return cfg.ShowRecentLoot
	case MetricWishlistPosition:
		return cfg.ShowWishlistPosition
	case MetricParses:
		return cfg.ShowParses
	case MetricIlvlComparison:
		return cfg.IlvlComparisonEnabled()
	case MetricTierTokenCounts:
		return cfg.TierTokenCountsEnabled()
	case MetricLastItemReceived:
		return cfg.ShowLastItemReceived
	}
	return false
}

// attendancePercentage sums the raider's per-raid credit in the lookback
// window and divides by the count of distinct raid dates in that window.
// Partial credit values are preserved. An empty window yields 0.
func attendancePercentage(records []domain.AttendanceRecord, raider string, refDay time.Time, lookbackDays int) float64 {
	start := refDay.AddDate(0, 0, -lookbackDays)

	dates := make(map[time.Time]bool)
	var credit float64
	for _, rec := range records {
		if rec.RaidDate.Before(start) || rec.RaidDate.After(refDay) {
			continue
		}
		dates[rec.RaidDate] = true
		if strings.EqualFold(rec.CharacterName, raider) {
			credit += rec.Credit
		}
	}
	if len(dates) == 0 {
		return 0
	}
	return credit / float64(len(dates)) * 100
}

// recentLootCount counts mainspec receipts inside the lookback window.
func recentLootCount(items []domain.ReceivedItem, refDay time.Time, lookbackDays int) int {
	start := refDay.AddDate(0, 0, -lookbackDays)
	count := 0
	for _, item := range items {
		if item.IsOffspec || item.ReceivedAt == nil {
			continue
		}
		d := *item.ReceivedAt
		if d.Before(start) || d.After(refDay) {
			continue
		}
		count++
	}
	return count
}

// ilvlUpgrade computes the item-level delta(s) against the raider's equipped
// gear for the item's slot. No snapshot data yields Known=false, never a
// silent zero.
func (e *Engine) ilvlUpgrade(raider string, item domain.ResolvedItem) domain.IlvlUpgrade {
	equipped := e.gear.EquippedIlvls(raider, item.Slot)
	if len(equipped) == 0 {
		return domain.IlvlUpgrade{}
	}
	deltas := make([]int, len(equipped))
	for i, ilvl := range equipped {
		deltas[i] = item.ItemLevel - ilvl
	}
	return domain.IlvlUpgrade{Known: true, Deltas: deltas}
}

// lastReceivedForSlot finds the most recent mainspec receipt whose slot
// matches the target slot. Weapon and ranged slot variants count as one
// group, and tier tokens count for the slot they redeem into.
func (e *Engine) lastReceivedForSlot(items []domain.ReceivedItem, targetSlot string, refDay time.Time) domain.LastReceived {
	cacheSlot := gear.NormalizeSlot(targetSlot)
	if cacheSlot == "" {
		return domain.LastReceived{}
	}
	slotsToMatch := make(map[string]bool)
	for _, s := range gear.SlotsForMatching(cacheSlot) {
		slotsToMatch[s] = true
	}

	var best *domain.ReceivedItem
	for i := range items {
		item := &items[i]
		if item.IsOffspec || item.ReceivedAt == nil || item.ReceivedAt.After(refDay) {
			continue
		}

		var itemSlot string
		if slot, _, ok := e.resolver.TokenInfo(item.ItemName); ok {
			itemSlot = slot
		} else if rec, ok := e.catalog.Item(item.ItemID); ok {
			itemSlot = rec.Slot
		}
		if itemSlot == "" || !slotsToMatch[strings.ToLower(itemSlot)] {
			continue
		}
		if best == nil || item.ReceivedAt.After(*best.ReceivedAt) {
			best = item
		}
	}
	if best == nil {
		return domain.LastReceived{}
	}
	return domain.LastReceived{
		Found:    true,
		ItemName: best.ItemName,
		DaysAgo:  int(refDay.Sub(*best.ReceivedAt).Hours() / 24),
	}
}

// shouldFetchParses applies the parse filter mode: dps_only skips healers
// and tanks.
func (e *Engine) shouldFetchParses(role string) bool {
	if e.cfg.ParseFilterMode == "everyone" {
		return true
	}
	switch role {
	case "DPS", "Melee", "Ranged":
		return true
	}
	return false
}

// parseArchetype maps a roster role to the log metric archetype.
func parseArchetype(role string) string {
	switch role {
	case "Tank":
		return "Tank"
	case "Heal", "Healer":
		return "Healer"
	}
	return "DPS"
}
