// Package parses caches combat-log performance data per zone and raider.
// Fetching is delegated to a Fetcher; failed or empty lookups are cached too
// so a raider is only ever looked up once per zone per process.
package parses

import (
	"log"
	"sync"

	"lootcouncil/internal/domain"
)

// Fetcher retrieves parse averages for one raider in one zone. The metric
// (dps/hps) follows the raider's archetype.
type Fetcher interface {
	FetchParses(raider string, zoneID int, archetype string) (domain.ParseData, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(raider string, zoneID int, archetype string) (domain.ParseData, error)

func (f FetcherFunc) FetchParses(raider string, zoneID int, archetype string) (domain.ParseData, error) {
	return f(raider, zoneID, archetype)
}

// Cache is a process-lifetime parse cache keyed by zone then raider name.
type Cache struct {
	fetcher Fetcher

	mu sync.Mutex
	// nil ParseData fields are cached as-is: a raider with no logs stays a
	// single lookup.
	zones map[int]map[string]domain.ParseData
}

func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		zones:   make(map[int]map[string]domain.ParseData),
	}
}

// GetOrFetch returns cached parse data for the raider, fetching on first
// access. Fetch errors are logged and cached as empty data.
func (c *Cache) GetOrFetch(raider string, zoneID int, archetype string) domain.ParseData {
	c.mu.Lock()
	zone, ok := c.zones[zoneID]
	if !ok {
		zone = make(map[string]domain.ParseData)
		c.zones[zoneID] = zone
	}
	if data, cached := zone[raider]; cached {
		c.mu.Unlock()
		return data
	}
	c.mu.Unlock()

	var data domain.ParseData
	if c.fetcher != nil {
		fetched, err := c.fetcher.FetchParses(raider, zoneID, archetype)
		if err != nil {
			log.Printf("parses fetch failed raider=%s zone=%d err=%v", raider, zoneID, err)
		} else {
			data = fetched
		}
	}

	c.mu.Lock()
	c.zones[zoneID][raider] = data
	c.mu.Unlock()
	return data
}

// Cached reports whether the raider already has an entry for the zone.
func (c *Cache) Cached(raider string, zoneID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.zones[zoneID][raider]
	return ok
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones = make(map[int]map[string]domain.ParseData)
}

// Stats returns the number of cached raiders per zone.
func (c *Cache) Stats() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := make(map[int]int, len(c.zones))
	for zone, raiders := range c.zones {
		stats[zone] = len(raiders)
	}
	return stats
}
