// Package engine turns a loot drop into ranked suggestions: it resolves the
// item against the catalog, finds eligible wishlist candidates, enriches
// them with the enabled metrics, and builds the decision prompt.
package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"lootcouncil/internal/catalog"
	"lootcouncil/internal/config"
	"lootcouncil/internal/domain"
	"lootcouncil/internal/parses"
)

// DataProvider supplies the guild data tables the engine reads. All tables
// are read-only from the engine's perspective.
type DataProvider interface {
	RaiderProfiles() ([]domain.RaiderProfile, error)
	RaiderWishlists() (map[string][]domain.WishlistEntry, error)
	RaiderReceived() (map[string][]domain.ReceivedItem, error)
	Attendance() ([]domain.AttendanceRecord, error)
	ItemNotes() ([]domain.ItemNote, error)
}

// GearSource answers equipped-gear questions from the gear snapshot.
type GearSource interface {
	EquippedIlvls(raider, catalogSlot string) []int
	TierTokenCount(raider, tierVersion string) (int, bool)
}

// Engine holds the data sources for candidate resolution. It is safe for
// use from a single goroutine; batch runs construct one Processor around it.
type Engine struct {
	cfg      config.Config
	data     DataProvider
	catalog  *catalog.Catalog
	resolver *catalog.Resolver
	gear     GearSource    // nil when the gear snapshot feature is off
	parses   *parses.Cache // nil when the parse metric is off

	raiderNotes map[string]string

	// now is a test seam for the reference-date calculation.
	now func() time.Time
}

func New(cfg config.Config, data DataProvider, cat *catalog.Catalog, resolver *catalog.Resolver, gearSource GearSource, parseCache *parses.Cache) *Engine {
	e := &Engine{
		cfg:      cfg,
		data:     data,
		catalog:  cat,
		resolver: resolver,
		gear:     gearSource,
		parses:   parseCache,
		now:      time.Now,
	}
	if cfg.ShowRaiderNotes {
		e.raiderNotes = loadRaiderNotes(cfg.RaiderNotesPath)
	}
	return e
}

// referenceDay anchors all date arithmetic for one resolution call.
func (e *Engine) referenceDay() time.Time {
	return e.cfg.ReferenceDay(e.now())
}

func loadRaiderNotes(path string) map[string]string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("raider notes unreadable path=%s err=%v", path, err)
		}
		return nil
	}
	var notes map[string]string
	if err := json.Unmarshal(data, &notes); err != nil {
		log.Printf("raider notes invalid path=%s err=%v", path, err)
		return nil
	}
	return notes
}

// NoCandidatesError means the item resolved but nobody eligible wants it.
type NoCandidatesError struct {
	Item string
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no eligible candidates found for %s", e.Item)
}
