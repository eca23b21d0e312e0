package domain

import "time"

// RaiderProfile is one row of the guild roster export.
type RaiderProfile struct {
	Name      string
	Race      string
	Class     string
	Spec      string
	Archetype string // "Tank", "Heal", "DPS", "Melee", "Ranged"
	IsAlt     bool
}

// WishlistEntry is one item on a raider's wishlist. ReceivedAt is nil when
// the raider has not received the item (or TMB recorded no date for it).
type WishlistEntry struct {
	ItemID     int
	ItemName   string
	Order      int
	IsOffspec  bool
	IsReceived bool
	ReceivedAt *time.Time
}

// ReceivedItem is one entry of a raider's loot history.
type ReceivedItem struct {
	ItemID     int
	ItemName   string
	IsOffspec  bool
	ReceivedAt *time.Time
}

// AttendanceRecord is one row of the attendance export. Credit supports
// partial values (e.g. 0.5 for a half raid), not just 0/1.
type AttendanceRecord struct {
	RaidDate      time.Time
	RaidName      string
	CharacterName string
	Credit        float64
	Remark        string
}

// ItemNote is one row of the item-notes export.
type ItemNote struct {
	ItemID       int
	Name         string
	InstanceName string
	Tier         int  // 0 when absent
	HasTier      bool
	PrioNote     string
}

// GroupKind tags how an item name resolved in the catalog.
type GroupKind string

const (
	GroupSingle   GroupKind = "SINGLE"
	GroupToken    GroupKind = "TOKEN"
	GroupExchange GroupKind = "EXCHANGE"
)

// ResolvedItem is the output of catalog resolution: the canonical item plus
// every interchangeable item identifier for token/exchange groups.
type ResolvedItem struct {
	ItemIDs     []int // token/source id first, then compatible items
	Name        string
	ItemLevel   int
	Slot        string
	Kind        GroupKind
	TierVersion string   // only for TOKEN
	SetBonuses  []string // raw set-bonus descriptions, only for TOKEN
	PrioNote    string   // guild priority note, filled by the engine
}

// IlvlUpgrade reports the item-level delta against currently equipped gear.
// Dual-slot gear (rings, trinkets, dual-wielded one-handers) yields two
// deltas. Known=false means the gear snapshot had no data for the raider.
type IlvlUpgrade struct {
	Known  bool
	Deltas []int
}

// LastReceived reports the most recent mainspec receipt for a slot group.
type LastReceived struct {
	Found    bool
	ItemName string
	DaysAgo  int
}

// ParseData holds combat-log performance averages for one raider in one zone.
type ParseData struct {
	BestAvg   *float64
	MedianAvg *float64
}

// Candidate is one eligible raider for one resolved item, enriched with
// whatever metrics are enabled. Constructed fresh per resolution call.
type Candidate struct {
	Name          string
	ClassSpec     string
	Role          string
	IsAlt         bool
	IsOffspec     bool
	WishlistOrder int

	// The wishlist entry carried is_received with no parseable date, so the
	// raider stayed eligible and the prompt carries a note instead.
	ReceivedFlagWithoutDate bool

	AttendancePct  float64
	RecentLoot     int
	Upgrade        IlvlUpgrade
	TierTokenCount int
	HasTierCount   bool
	LastForSlot    LastReceived
	Parses         *ParseData
	ParsesFetched  bool
	Note           string
}

// LootDecision is the immutable outcome of processing one item.
type LootDecision struct {
	ItemName    string
	ItemSlot    string
	Suggestion1 string
	Suggestion2 string
	Suggestion3 string
	Rationale   string
	Success     bool
	Err         string

	// Raw prompt/response kept for diagnostics.
	DebugPrompt   string
	DebugResponse string
}

// Status renders the CSV/status-feed column for the decision.
func (d LootDecision) Status() string {
	if d.Success {
		return "OK"
	}
	return "Error: " + d.Err
}
