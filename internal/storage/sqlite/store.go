// Package sqlite persists loot-council run history: one row per batch run
// and one row per item decision, so past suggestions stay queryable after
// the CSV export is handed out.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lootcouncil/internal/domain"
)

// Store wraps the decision-history database.
type Store struct {
	db *sql.DB
}

// Run is one batch (or single-item) invocation.
type Run struct {
	ID         int64
	Zone       string
	Mode       string // "zone" or "single"
	StartedAt  time.Time
	FinishedAt *time.Time
	ItemCount  int
	ErrorCount int
	ExportPath string
}

// StoredDecision is one persisted item decision.
type StoredDecision struct {
	ID        int64
	RunID     int64
	DecidedAt time.Time
	domain.LootDecision
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		zone        TEXT NOT NULL DEFAULT '',
		mode        TEXT NOT NULL DEFAULT 'zone',
		started_at  DATETIME NOT NULL,
		finished_at DATETIME,
		item_count  INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		export_path TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS decisions (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       INTEGER NOT NULL,
		item_name    TEXT NOT NULL,
		item_slot    TEXT NOT NULL DEFAULT '',
		suggestion_1 TEXT NOT NULL DEFAULT '',
		suggestion_2 TEXT NOT NULL DEFAULT '',
		suggestion_3 TEXT NOT NULL DEFAULT '',
		rationale    TEXT NOT NULL DEFAULT '',
		success      INTEGER NOT NULL DEFAULT 0,
		error        TEXT NOT NULL DEFAULT '',
		prompt       TEXT NOT NULL DEFAULT '',
		response     TEXT NOT NULL DEFAULT '',
		decided_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_item ON decisions(item_name);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// BeginRun records the start of a run and returns its id.
func (s *Store) BeginRun(zone, mode string, startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (zone, mode, started_at) VALUES (?, ?, ?)`,
		zone, mode, startedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun closes out a run with its totals and export location.
func (s *Store) FinishRun(runID int64, finishedAt time.Time, itemCount, errorCount int, exportPath string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, item_count = ?, error_count = ?, export_path = ? WHERE id = ?`,
		finishedAt, itemCount, errorCount, exportPath, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", runID, err)
	}
	return nil
}

// InsertDecision persists one decision under the run. Called at the item
// boundary so a cancelled run keeps what it has already decided.
func (s *Store) InsertDecision(runID int64, d domain.LootDecision) error {
	_, err := s.db.Exec(
		`INSERT INTO decisions (run_id, item_name, item_slot, suggestion_1, suggestion_2, suggestion_3, rationale, success, error, prompt, response)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, d.ItemName, d.ItemSlot, d.Suggestion1, d.Suggestion2, d.Suggestion3,
		d.Rationale, boolToInt(d.Success), d.Err, d.DebugPrompt, d.DebugResponse,
	)
	if err != nil {
		return fmt.Errorf("inserting decision for %s: %w", d.ItemName, err)
	}
	return nil
}

// InsertDecisions persists a batch in one transaction.
func (s *Store) InsertDecisions(runID int64, decisions []domain.LootDecision) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO decisions (run_id, item_name, item_slot, suggestion_1, suggestion_2, suggestion_3, rationale, success, error, prompt, response)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, d := range decisions {
		_, err := stmt.Exec(
			runID, d.ItemName, d.ItemSlot, d.Suggestion1, d.Suggestion2, d.Suggestion3,
			d.Rationale, boolToInt(d.Success), d.Err, d.DebugPrompt, d.DebugResponse,
		)
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, tx.Commit()
}

// DecisionsForRun lists a run's decisions in insertion order.
func (s *Store) DecisionsForRun(runID int64) ([]StoredDecision, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, item_name, item_slot, suggestion_1, suggestion_2, suggestion_3, rationale, success, error, prompt, response, decided_at
		 FROM decisions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredDecision
	for rows.Next() {
		var d StoredDecision
		var success int
		err := rows.Scan(
			&d.ID, &d.RunID, &d.ItemName, &d.ItemSlot,
			&d.Suggestion1, &d.Suggestion2, &d.Suggestion3, &d.Rationale,
			&success, &d.Err, &d.DebugPrompt, &d.DebugResponse, &d.DecidedAt,
		)
		if err != nil {
			return nil, err
		}
		d.Success = success != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// DecisionsForItem lists every past decision for an item name, newest first.
func (s *Store) DecisionsForItem(itemName string) ([]StoredDecision, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, item_name, item_slot, suggestion_1, suggestion_2, suggestion_3, rationale, success, error, prompt, response, decided_at
		 FROM decisions WHERE item_name = ? COLLATE NOCASE ORDER BY id DESC`,
		itemName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredDecision
	for rows.Next() {
		var d StoredDecision
		var success int
		err := rows.Scan(
			&d.ID, &d.RunID, &d.ItemName, &d.ItemSlot,
			&d.Suggestion1, &d.Suggestion2, &d.Suggestion3, &d.Rationale,
			&success, &d.Err, &d.DebugPrompt, &d.DebugResponse, &d.DecidedAt,
		)
		if err != nil {
			return nil, err
		}
		d.Success = success != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecentRuns lists the newest runs first, up to limit.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, zone, mode, started_at, finished_at, item_count, error_count, export_path
		 FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		err := rows.Scan(&r.ID, &r.Zone, &r.Mode, &r.StartedAt, &finished, &r.ItemCount, &r.ErrorCount, &r.ExportPath)
		if err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
