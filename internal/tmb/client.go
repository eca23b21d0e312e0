// Package tmb fetches guild data exports from a That's My BIS site using a
// previously captured browser session.
package tmb

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"lootcouncil/internal/domain"
	"lootcouncil/internal/httpx"
)

const defaultBaseURL = "https://thatsmybis.com"

var (
	// ErrSessionNotFound means the session file is missing or unreadable.
	ErrSessionNotFound = errors.New("tmb session not found")
	// ErrSessionExpired means the stored session is past its expiry, or the
	// server bounced the request to its login page.
	ErrSessionExpired = errors.New("tmb session expired")
)

type sessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type session struct {
	Cookies   []sessionCookie
	CreatedAt time.Time
	ExpiresAt *time.Time
}

func loadSession(path string) (*session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, path)
	}

	var raw struct {
		Cookies   []sessionCookie `json:"cookies"`
		CreatedAt string          `json:"created_at"`
		ExpiresAt string          `json:"expires_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid session file: %v", ErrSessionNotFound, err)
	}
	if raw.CreatedAt == "" {
		return nil, fmt.Errorf("%w: session file missing created_at", ErrSessionNotFound)
	}

	s := &session{Cookies: raw.Cookies}
	if s.CreatedAt, err = parseISOTime(raw.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: bad created_at: %v", ErrSessionNotFound, err)
	}
	if raw.ExpiresAt != "" {
		t, err := parseISOTime(raw.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad expires_at: %v", ErrSessionNotFound, err)
		}
		s.ExpiresAt = &t
	}
	return s, nil
}

func parseISOTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// valid reports whether the session is usable. A session with no expiry
// information is treated as invalid to force re-authentication.
func (s *session) valid(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.Before(*s.ExpiresAt)
}

// flexBool accepts the 0/1 integers TMB exports use for boolean fields, plus
// actual JSON booleans.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", "1":
		*b = true
		return nil
	case "false", "0", "null":
		*b = false
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = n != 0
	return nil
}

type characterItem struct {
	ItemID int    `json:"item_id"`
	Name   string `json:"name"`
	Pivot  struct {
		Order      int      `json:"order"`
		IsOffspec  flexBool `json:"is_offspec"`
		IsReceived flexBool `json:"is_received"`
		ReceivedAt string   `json:"received_at"`
	} `json:"pivot"`
}

type character struct {
	Name      string          `json:"name"`
	Race      string          `json:"race"`
	Class     string          `json:"class"`
	Spec      string          `json:"spec"`
	Archetype string          `json:"archetype"`
	IsAlt     flexBool        `json:"is_alt"`
	Wishlist  []characterItem `json:"wishlist"`
	Received  []characterItem `json:"received"`
}

// Client fetches and caches the TMB guild exports: character roster with
// wishlists and loot history, attendance, and item notes. Each export is
// fetched once and served from cache until RefreshAll.
type Client struct {
	guildID     string
	sessionPath string
	baseURL     string
	httpClient  *http.Client

	mu         sync.Mutex
	session    *session
	characters []character
	profiles   []domain.RaiderProfile
	wishlists  map[string][]domain.WishlistEntry
	received   map[string][]domain.ReceivedItem
	attendance []domain.AttendanceRecord
	itemNotes  []domain.ItemNote
}

// NewClient builds a client for one guild. The session file at sessionPath is
// loaded lazily on first fetch.
func NewClient(guildID, sessionPath string) *Client {
	// Redirects stay visible so a bounce to /login can be detected.
	base := httpx.Client()
	hc := &http.Client{
		Timeout: base.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &Client{
		guildID:     guildID,
		sessionPath: sessionPath,
		baseURL:     defaultBaseURL,
		httpClient:  hc,
	}
}

func (c *Client) guildURL() string {
	// The slug segment is not used by the export endpoints.
	return fmt.Sprintf("%s/%s/placeholder", strings.TrimRight(c.baseURL, "/"), c.guildID)
}

func (c *Client) loadSessionLocked() (*session, error) {
	if c.session == nil {
		s, err := loadSession(c.sessionPath)
		if err != nil {
			return nil, err
		}
		c.session = s
	}
	return c.session, nil
}

// SessionValid reports whether a usable session file is present.
func (c *Client) SessionValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.loadSessionLocked()
	if err != nil {
		return false
	}
	return s.valid(time.Now())
}

func (c *Client) fetchLocked(endpoint string) ([]byte, error) {
	s, err := c.loadSessionLocked()
	if err != nil {
		return nil, err
	}
	if !s.valid(time.Now()) {
		return nil, fmt.Errorf("%w: local expiry passed", ErrSessionExpired)
	}

	url := c.guildURL() + endpoint
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for _, ck := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if strings.Contains(resp.Header.Get("Location"), "/login") {
			return nil, fmt.Errorf("%w: server redirected to login", ErrSessionExpired)
		}
		return nil, fmt.Errorf("unexpected redirect from %s to %s", url, resp.Header.Get("Location"))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("TMB returned %d for %s", resp.StatusCode, url)
	}
	return body, nil
}

func (c *Client) charactersLocked() ([]character, error) {
	if c.characters != nil {
		return c.characters, nil
	}
	body, err := c.fetchLocked("/export/characters-with-items/html")
	if err != nil {
		return nil, err
	}
	var chars []character
	if err := json.Unmarshal(body, &chars); err != nil {
		return nil, fmt.Errorf("parsing characters JSON: %w", err)
	}
	log.Printf("tmb fetched characters count=%d guild=%s", len(chars), c.guildID)
	c.characters = chars
	return chars, nil
}

// tmbDate is the "YYYY-MM-DD HH:MM:SS" format the pivot tables use. Values
// that do not parse are treated as absent.
func parseTMBDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		log.Printf("tmb unparseable date value=%q", s)
		return nil
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}

// RaiderProfiles returns one profile per roster character.
func (c *Client) RaiderProfiles() ([]domain.RaiderProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profiles != nil {
		return c.profiles, nil
	}
	chars, err := c.charactersLocked()
	if err != nil {
		return nil, err
	}
	profiles := make([]domain.RaiderProfile, 0, len(chars))
	for _, ch := range chars {
		profiles = append(profiles, domain.RaiderProfile{
			Name:      ch.Name,
			Race:      ch.Race,
			Class:     ch.Class,
			Spec:      ch.Spec,
			Archetype: ch.Archetype,
			IsAlt:     bool(ch.IsAlt),
		})
	}
	c.profiles = profiles
	return profiles, nil
}

// RaiderWishlists returns each raider's wishlist keyed by character name.
func (c *Client) RaiderWishlists() (map[string][]domain.WishlistEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wishlists != nil {
		return c.wishlists, nil
	}
	chars, err := c.charactersLocked()
	if err != nil {
		return nil, err
	}
	wishlists := make(map[string][]domain.WishlistEntry, len(chars))
	for _, ch := range chars {
		entries := make([]domain.WishlistEntry, 0, len(ch.Wishlist))
		for _, item := range ch.Wishlist {
			entries = append(entries, domain.WishlistEntry{
				ItemID:     item.ItemID,
				ItemName:   item.Name,
				Order:      item.Pivot.Order,
				IsOffspec:  bool(item.Pivot.IsOffspec),
				IsReceived: bool(item.Pivot.IsReceived),
				ReceivedAt: parseTMBDate(item.Pivot.ReceivedAt),
			})
		}
		wishlists[ch.Name] = entries
	}
	c.wishlists = wishlists
	return wishlists, nil
}

// RaiderReceived returns each raider's loot history keyed by character name.
func (c *Client) RaiderReceived() (map[string][]domain.ReceivedItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.received != nil {
		return c.received, nil
	}
	chars, err := c.charactersLocked()
	if err != nil {
		return nil, err
	}
	received := make(map[string][]domain.ReceivedItem, len(chars))
	for _, ch := range chars {
		items := make([]domain.ReceivedItem, 0, len(ch.Received))
		for _, item := range ch.Received {
			items = append(items, domain.ReceivedItem{
				ItemID:     item.ItemID,
				ItemName:   item.Name,
				IsOffspec:  bool(item.Pivot.IsOffspec),
				ReceivedAt: parseTMBDate(item.Pivot.ReceivedAt),
			})
		}
		received[ch.Name] = items
	}
	c.received = received
	return received, nil
}

// Attendance returns the raid attendance export.
func (c *Client) Attendance() ([]domain.AttendanceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attendance != nil {
		return c.attendance, nil
	}
	body, err := c.fetchLocked("/export/attendance/html")
	if err != nil {
		return nil, err
	}
	records, err := parseAttendanceCSV(body)
	if err != nil {
		return nil, err
	}
	log.Printf("tmb fetched attendance records=%d", len(records))
	c.attendance = records
	return records, nil
}

func parseAttendanceCSV(data []byte) ([]domain.AttendanceRecord, error) {
	rows, header, err := readCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parsing attendance CSV: %w", err)
	}
	col := headerIndex(header)
	var records []domain.AttendanceRecord
	for _, row := range rows {
		rec := domain.AttendanceRecord{
			RaidName:      field(row, col, "raid_name"),
			CharacterName: field(row, col, "character_name"),
			Remark:        field(row, col, "remark"),
		}
		if v := field(row, col, "credit"); v != "" {
			if credit, err := strconv.ParseFloat(v, 64); err == nil {
				rec.Credit = credit
			}
		}
		if v := field(row, col, "raid_date"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				t, err = time.Parse("2006-01-02 15:04:05", v)
			}
			if err != nil {
				log.Printf("tmb bad raid_date value=%q", v)
				continue
			}
			rec.RaidDate = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ItemNotes returns the item-notes export (guild priority notes and tier
// labels per item).
func (c *Client) ItemNotes() ([]domain.ItemNote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.itemNotes != nil {
		return c.itemNotes, nil
	}
	body, err := c.fetchLocked("/export/item-notes/html")
	if err != nil {
		return nil, err
	}
	notes, err := parseItemNotesCSV(body)
	if err != nil {
		return nil, err
	}
	log.Printf("tmb fetched item notes count=%d", len(notes))
	c.itemNotes = notes
	return notes, nil
}

func parseItemNotesCSV(data []byte) ([]domain.ItemNote, error) {
	rows, header, err := readCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parsing item-notes CSV: %w", err)
	}
	col := headerIndex(header)
	var notes []domain.ItemNote
	for _, row := range rows {
		note := domain.ItemNote{
			Name:         field(row, col, "name"),
			InstanceName: field(row, col, "instance_name"),
			PrioNote:     field(row, col, "prio_note"),
		}
		if v := field(row, col, "id"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				note.ItemID = id
			}
		}
		if v := field(row, col, "tier"); v != "" {
			if tier, err := strconv.Atoi(v); err == nil {
				note.Tier = tier
				note.HasTier = true
			}
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func readCSV(data []byte) (rows [][]string, header []string, err error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[1:], all[0], nil
}

func headerIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	return col
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// RefreshAll drops every cached export and re-fetches them from the server.
func (c *Client) RefreshAll() error {
	c.mu.Lock()
	c.characters = nil
	c.profiles = nil
	c.wishlists = nil
	c.received = nil
	c.attendance = nil
	c.itemNotes = nil
	c.session = nil
	c.mu.Unlock()

	log.Printf("tmb refresh start guild=%s", c.guildID)
	if _, err := c.RaiderProfiles(); err != nil {
		return err
	}
	if _, err := c.RaiderWishlists(); err != nil {
		return err
	}
	if _, err := c.RaiderReceived(); err != nil {
		return err
	}
	if _, err := c.Attendance(); err != nil {
		return err
	}
	if _, err := c.ItemNotes(); err != nil {
		return err
	}
	log.Printf("tmb refresh done guild=%s", c.guildID)
	return nil
}
