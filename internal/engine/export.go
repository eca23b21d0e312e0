package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"lootcouncil/internal/domain"
)

var csvHeader = []string{"Name", "Slot", "Suggestion 1", "Suggestion 2", "Suggestion 3", "Rationale", "Status"}

// WriteDecisionsCSV writes one row per decision. Failed decisions carry
// their error in the Status column so no item silently disappears from the
// export. The file starts with a UTF-8 BOM so spreadsheet tools detect the
// encoding.
func WriteDecisionsCSV(decisions []domain.LootDecision, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("writing export header: %w", err)
	}
	for _, d := range decisions {
		row := []string{
			d.ItemName,
			d.ItemSlot,
			d.Suggestion1,
			d.Suggestion2,
			d.Suggestion3,
			d.Rationale,
			d.Status(),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing export: %w", err)
	}
	return nil
}
