package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lootcouncil/internal/httpx"
)

// ItemRecord is one entry of the item database.
type ItemRecord struct {
	ItemID    int    `json:"itemId"`
	Name      string `json:"name"`
	ItemLevel int    `json:"itemLevel"`
	Slot      string `json:"slot"`
}

// Catalog holds the immutable item database for the process lifetime.
// It is loaded once (local cache file first, HTTP fetch otherwise) and only
// changes through an explicit Refresh.
type Catalog struct {
	url       string
	cachePath string

	mu       sync.RWMutex
	byID     map[int]ItemRecord
	byName   map[string]int // lowercase name -> id
	loaded   bool
}

// NewCatalog builds an unloaded catalog. Load or Refresh must be called
// before lookups.
func NewCatalog(url, cachePath string) *Catalog {
	return &Catalog{
		url:       url,
		cachePath: cachePath,
		byID:      make(map[int]ItemRecord),
		byName:    make(map[string]int),
	}
}

// Load populates the catalog from the local cache file when present,
// otherwise fetches from the configured URL and writes the cache back.
func (c *Catalog) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	items, err := c.loadFromCache()
	if err != nil {
		log.Printf("catalog cache load skipped path=%s err=%v", c.cachePath, err)
	}
	if items == nil {
		items, err = c.fetch()
		if err != nil {
			return err
		}
		c.saveToCache(items)
	}

	c.index(items)
	return nil
}

// Refresh re-fetches the item database from source, replacing the in-memory
// index and the local cache file.
func (c *Catalog) Refresh() error {
	items, err := c.fetch()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveToCache(items)
	c.index(items)
	return nil
}

func (c *Catalog) index(items []ItemRecord) {
	c.byID = make(map[int]ItemRecord, len(items))
	c.byName = make(map[string]int, len(items))
	for _, item := range items {
		if item.ItemID == 0 {
			continue
		}
		c.byID[item.ItemID] = item
		c.byName[strings.ToLower(item.Name)] = item.ItemID
	}
	c.loaded = true
	log.Printf("catalog loaded items=%d", len(c.byID))
}

func (c *Catalog) loadFromCache() ([]ItemRecord, error) {
	if c.cachePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var items []ItemRecord
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing catalog cache: %w", err)
	}
	return items, nil
}

func (c *Catalog) saveToCache(items []ItemRecord) {
	if c.cachePath == "" {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		log.Printf("catalog cache marshal error: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		log.Printf("catalog cache dir error: %v", err)
		return
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		log.Printf("catalog cache write error: %v", err)
	}
}

func (c *Catalog) fetch() ([]ItemRecord, error) {
	log.Printf("catalog fetch url=%s", c.url)
	resp, err := httpx.Client().Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("fetching item catalog: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading item catalog: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("item catalog returned %d", resp.StatusCode)
	}

	var items []ItemRecord
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parsing item catalog: %w", err)
	}
	return items, nil
}

// ItemID returns the identifier for a display name, case-insensitive.
func (c *Catalog) ItemID(name string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[strings.ToLower(name)]
	return id, ok
}

// Item returns the full record for an identifier.
func (c *Catalog) Item(id int) (ItemRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.byID[id]
	return item, ok
}

// Len reports how many items are indexed.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
