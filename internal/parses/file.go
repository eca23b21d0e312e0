package parses

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"lootcouncil/internal/domain"
)

// FileFetcher serves parse averages from a local JSON snapshot, keyed by
// zone id then raider name:
//
//	{"1017": {"Thorgrim": {"best_avg": 91.2, "median_avg": 84.0}}}
//
// Exporting combat-log data into this file is left to external tooling.
type FileFetcher struct {
	path string

	mu    sync.Mutex
	zones map[int]map[string]domain.ParseData
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

// FetchParses implements Fetcher. The snapshot is loaded on first use; a
// missing raider yields empty parse data, a missing file is an error so
// the cache records it once and moves on.
func (f *FileFetcher) FetchParses(raider string, zoneID int, archetype string) (domain.ParseData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.zones == nil {
		if err := f.loadLocked(); err != nil {
			return domain.ParseData{}, err
		}
	}
	zone, ok := f.zones[zoneID]
	if !ok {
		return domain.ParseData{}, nil
	}
	if data, ok := zone[strings.ToLower(raider)]; ok {
		return data, nil
	}
	return domain.ParseData{}, nil
}

func (f *FileFetcher) loadLocked() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("reading parse snapshot: %w", err)
	}

	var byZone map[string]map[string]struct {
		BestAvg   *float64 `json:"best_avg"`
		MedianAvg *float64 `json:"median_avg"`
	}
	if err := json.Unmarshal(raw, &byZone); err != nil {
		return fmt.Errorf("parsing parse snapshot %s: %w", f.path, err)
	}

	f.zones = make(map[int]map[string]domain.ParseData, len(byZone))
	for zoneKey, raiders := range byZone {
		zoneID, err := strconv.Atoi(zoneKey)
		if err != nil {
			return fmt.Errorf("parse snapshot zone key %q: %w", zoneKey, err)
		}
		table := make(map[string]domain.ParseData, len(raiders))
		for name, d := range raiders {
			table[strings.ToLower(name)] = domain.ParseData{BestAvg: d.BestAvg, MedianAvg: d.MedianAvg}
		}
		f.zones[zoneID] = table
	}
	return nil
}
