package tmb

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testCharactersJSON = `[
  {
    "name": "Thorgrim", "race": "Dwarf", "class": "Paladin", "spec": "Protection",
    "archetype": "Tank", "is_alt": 0,
    "wishlist": [
      {"item_id": 51002, "name": "Crown of the Wayward Conqueror",
       "pivot": {"order": 1, "is_offspec": 0, "is_received": 0, "received_at": null}},
      {"item_id": 50730, "name": "Glorenzelg",
       "pivot": {"order": 2, "is_offspec": 0, "is_received": 1, "received_at": "2026-08-10 21:30:00"}}
    ],
    "received": [
      {"item_id": 50730, "name": "Glorenzelg",
       "pivot": {"is_offspec": 0, "received_at": "2026-08-10 21:30:00"}}
    ]
  },
  {
    "name": "Milli", "race": "Gnome", "class": "Mage", "spec": "Fire",
    "archetype": "Ranged", "is_alt": 1,
    "wishlist": [],
    "received": []
  }
]`

const testAttendanceCSV = `raid_date,raid_name,character_name,credit,remark
2026-08-20,ICC 25,Thorgrim,1,
2026-08-20,ICC 25,Milli,0.5,late
2026-08-13,ICC 25,Thorgrim,1,
`

const testItemNotesCSV = `id,name,instance_name,tier,prio_note
51002,Crown of the Wayward Conqueror,Icecrown Citadel,10,Tanks first
50730,Glorenzelg,Icecrown Citadel,,
`

func writeSession(t *testing.T, dir string, expires time.Time) string {
	t.Helper()
	path := filepath.Join(dir, "tmb_session.json")
	content := `{
  "cookies": [{"name": "laravel_session", "value": "abc123"}],
  "created_at": "2026-08-01T10:00:00",
  "expires_at": "` + expires.Format("2006-01-02T15:04:05") + `"
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write session: %v", err)
	}
	return path
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessionPath := writeSession(t, t.TempDir(), time.Now().Add(24*time.Hour))
	c := NewClient("900", sessionPath)
	c.baseURL = srv.URL
	return c
}

func exportHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/900/placeholder/export/characters-with-items/html", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("laravel_session"); err != nil || ck.Value != "abc123" {
			t.Errorf("missing session cookie on %s", r.URL.Path)
		}
		w.Write([]byte(testCharactersJSON))
	})
	mux.HandleFunc("/900/placeholder/export/attendance/html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testAttendanceCSV))
	})
	mux.HandleFunc("/900/placeholder/export/item-notes/html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testItemNotesCSV))
	})
	return mux
}

func TestRaiderProfilesAndWishlists(t *testing.T) {
	c := newTestClient(t, exportHandler(t))

	profiles, err := c.RaiderProfiles()
	if err != nil {
		t.Fatalf("RaiderProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("profiles = %d, want 2", len(profiles))
	}
	if profiles[0].Name != "Thorgrim" || profiles[0].IsAlt {
		t.Fatalf("profiles[0] = %+v", profiles[0])
	}
	if !profiles[1].IsAlt {
		t.Fatalf("profiles[1].IsAlt = false, want true (is_alt: 1)")
	}

	wishlists, err := c.RaiderWishlists()
	if err != nil {
		t.Fatalf("RaiderWishlists: %v", err)
	}
	entries := wishlists["Thorgrim"]
	if len(entries) != 2 {
		t.Fatalf("Thorgrim wishlist = %d entries, want 2", len(entries))
	}
	if entries[0].IsReceived || entries[0].ReceivedAt != nil {
		t.Fatalf("entries[0] = %+v, want unreceived", entries[0])
	}
	if !entries[1].IsReceived || entries[1].ReceivedAt == nil {
		t.Fatalf("entries[1] = %+v, want received with date", entries[1])
	}
	want := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	if !entries[1].ReceivedAt.Equal(want) {
		t.Fatalf("ReceivedAt = %v, want %v (truncated to day)", entries[1].ReceivedAt, want)
	}
}

func TestRaiderReceived(t *testing.T) {
	c := newTestClient(t, exportHandler(t))
	received, err := c.RaiderReceived()
	if err != nil {
		t.Fatalf("RaiderReceived: %v", err)
	}
	items := received["Thorgrim"]
	if len(items) != 1 || items[0].ItemID != 50730 {
		t.Fatalf("received = %+v", items)
	}
	if len(received["Milli"]) != 0 {
		t.Fatalf("Milli received = %+v, want empty", received["Milli"])
	}
}

func TestAttendance(t *testing.T) {
	c := newTestClient(t, exportHandler(t))
	records, err := c.Attendance()
	if err != nil {
		t.Fatalf("Attendance: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[1].CharacterName != "Milli" || records[1].Credit != 0.5 {
		t.Fatalf("records[1] = %+v", records[1])
	}
	if records[0].RaidDate != time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("records[0].RaidDate = %v", records[0].RaidDate)
	}
}

func TestItemNotes(t *testing.T) {
	c := newTestClient(t, exportHandler(t))
	notes, err := c.ItemNotes()
	if err != nil {
		t.Fatalf("ItemNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(notes))
	}
	if !notes[0].HasTier || notes[0].Tier != 10 || notes[0].PrioNote != "Tanks first" {
		t.Fatalf("notes[0] = %+v", notes[0])
	}
	if notes[1].HasTier {
		t.Fatalf("notes[1].HasTier = true for blank tier column")
	}
}

func TestCachesUntilRefresh(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/900/placeholder/export/characters-with-items/html", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(testCharactersJSON))
	})
	mux.HandleFunc("/900/placeholder/export/attendance/html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testAttendanceCSV))
	})
	mux.HandleFunc("/900/placeholder/export/item-notes/html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testItemNotesCSV))
	})
	c := newTestClient(t, mux)

	// Profiles, wishlists and received all come from one characters fetch.
	if _, err := c.RaiderProfiles(); err != nil {
		t.Fatalf("RaiderProfiles: %v", err)
	}
	if _, err := c.RaiderWishlists(); err != nil {
		t.Fatalf("RaiderWishlists: %v", err)
	}
	if _, err := c.RaiderReceived(); err != nil {
		t.Fatalf("RaiderReceived: %v", err)
	}
	if calls != 1 {
		t.Fatalf("characters fetched %d times, want 1", calls)
	}

	if err := c.RefreshAll(); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if calls != 2 {
		t.Fatalf("characters fetched %d times after refresh, want 2", calls)
	}
}

func TestExpiredSessionRejectedLocally(t *testing.T) {
	sessionPath := writeSession(t, t.TempDir(), time.Now().Add(-time.Hour))
	c := NewClient("900", sessionPath)
	c.baseURL = "http://unreachable.invalid"

	_, err := c.RaiderProfiles()
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if c.SessionValid() {
		t.Fatal("SessionValid = true for expired session")
	}
}

func TestLoginRedirectMeansExpired(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://thatsmybis.com/login", http.StatusFound)
	}))
	_, err := c.Attendance()
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestMissingSessionFile(t *testing.T) {
	c := NewClient("900", filepath.Join(t.TempDir(), "nope.json"))
	_, err := c.ItemNotes()
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if c.SessionValid() {
		t.Fatal("SessionValid = true with no session file")
	}
}
