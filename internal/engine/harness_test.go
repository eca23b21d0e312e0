package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lootcouncil/internal/catalog"
	"lootcouncil/internal/config"
	"lootcouncil/internal/domain"
)

// Fixed reference day for deterministic date arithmetic.
var testRefDay = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

func day(year int, month time.Month, d int) *time.Time {
	t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// fakeData is an in-memory DataProvider.
type fakeData struct {
	profiles  []domain.RaiderProfile
	wishlists map[string][]domain.WishlistEntry
	received  map[string][]domain.ReceivedItem
	dates     []domain.AttendanceRecord
	notes     []domain.ItemNote
}

func (f *fakeData) RaiderProfiles() ([]domain.RaiderProfile, error) { return f.profiles, nil }
func (f *fakeData) RaiderWishlists() (map[string][]domain.WishlistEntry, error) {
	return f.wishlists, nil
}
func (f *fakeData) RaiderReceived() (map[string][]domain.ReceivedItem, error) {
	return f.received, nil
}
func (f *fakeData) Attendance() ([]domain.AttendanceRecord, error) { return f.dates, nil }
func (f *fakeData) ItemNotes() ([]domain.ItemNote, error)          { return f.notes, nil }

// fakeGear is an in-memory GearSource.
type fakeGear struct {
	ilvls      map[string][]int // key: raider|slot (lowercase raider)
	tierCounts map[string]int   // key: raider|tierVersion
}

func (f *fakeGear) EquippedIlvls(raider, catalogSlot string) []int {
	return f.ilvls[raider+"|"+catalogSlot]
}

func (f *fakeGear) TierTokenCount(raider, tierVersion string) (int, bool) {
	count, ok := f.tierCounts[raider+"|"+tierVersion]
	return count, ok
}

const engineTokensJSON = `{
  "tier5": [
    {
      "tier_version": "Tier 5",
      "tokens": [
        {
          "token_name": "Helm of the Fallen Defender",
          "slot": "Head",
          "ilvl": 133,
          "compatible_items": [
            "Warbringer Greathelm",
            "Justicar Faceguard",
            "Cyclone Faceguard"
          ]
        }
      ]
    }
  ],
  "exchange_items_tbc": {
    "Magtheridon's Head": {
      "ilvl": 125,
      "items": ["Naaru-Blessed Life Rod", "Eye of Magtheridon"]
    }
  }
}`

var engineCatalogItems = []catalog.ItemRecord{
	{ItemID: 29759, Name: "Helm of the Fallen Defender"},
	{ItemID: 29021, Name: "Warbringer Greathelm", ItemLevel: 133, Slot: "Head"},
	{ItemID: 29068, Name: "Justicar Faceguard", ItemLevel: 133, Slot: "Head"},
	{ItemID: 29028, Name: "Cyclone Faceguard", ItemLevel: 133, Slot: "Head"},
	{ItemID: 32385, Name: "Magtheridon's Head"},
	{ItemID: 28789, Name: "Naaru-Blessed Life Rod", ItemLevel: 125, Slot: "Held In Off-hand"},
	{ItemID: 28777, Name: "Eye of Magtheridon", ItemLevel: 125, Slot: "Trinket"},
	{ItemID: 30101, Name: "Bloodfall", ItemLevel: 128, Slot: "One-Hand"},
	{ItemID: 30102, Name: "Crystalheart Pulse-Staff", ItemLevel: 128, Slot: "Two-Hand"},
	{ItemID: 30103, Name: "Band of the Ranger-General", ItemLevel: 128, Slot: "Finger"},
	{ItemID: 30104, Name: "Nether Vortex", Slot: "Non-Equippable"},
}

func newEngineCatalog(t *testing.T) (*catalog.Catalog, *catalog.Resolver) {
	t.Helper()
	dir := t.TempDir()

	data, err := json.Marshal(engineCatalogItems)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	cachePath := filepath.Join(dir, "items.json")
	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat := catalog.NewCatalog("http://unreachable.invalid/items.json", cachePath)
	if err := cat.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	tokensPath := filepath.Join(dir, "tokens.json")
	if err := os.WriteFile(tokensPath, []byte(engineTokensJSON), 0o644); err != nil {
		t.Fatalf("write tokens: %v", err)
	}
	resolver, err := catalog.NewResolver(cat, tokensPath)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return cat, resolver
}

// baseConfig enables the cheap metrics and leaves gear/parse/notes off;
// individual tests flip what they need.
func baseConfig() config.Config {
	return config.Config{
		ShowAttendance:         true,
		ShowRecentLoot:         true,
		ShowWishlistPosition:   true,
		ShowAltStatus:          true,
		AttendanceLookbackDays: 60,
		LootLookbackDays:       14,
		PolicyMode:             "simple",
		MetricOrder:            append([]string(nil), config.DefaultMetricOrder...),
		ParseFilterMode:        "dps_only",
	}
}

func newTestEngine(t *testing.T, cfg config.Config, data *fakeData, gearSource GearSource) *Engine {
	t.Helper()
	cat, resolver := newEngineCatalog(t)
	e := New(cfg, data, cat, resolver, gearSource, nil)
	e.now = func() time.Time { return testRefDay }
	return e
}

// standardRoster: three raiders wanting the Tier 5 helm token through
// different compatible items; Zumi is an alt.
func standardRoster() *fakeData {
	return &fakeData{
		profiles: []domain.RaiderProfile{
			{Name: "Thorgrim", Class: "Warrior", Spec: "Protection", Archetype: "Tank"},
			{Name: "Lumen", Class: "Paladin", Spec: "Holy", Archetype: "Heal"},
			{Name: "Zumi", Class: "Shaman", Spec: "Enhancement", Archetype: "Melee", IsAlt: true},
		},
		wishlists: map[string][]domain.WishlistEntry{
			"Thorgrim": {
				{ItemID: 29021, ItemName: "Warbringer Greathelm", Order: 2},
			},
			"Lumen": {
				{ItemID: 29068, ItemName: "Justicar Faceguard", Order: 1},
			},
			"Zumi": {
				{ItemID: 29028, ItemName: "Cyclone Faceguard", Order: 3},
			},
		},
		received: map[string][]domain.ReceivedItem{},
	}
}
