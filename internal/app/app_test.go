package app

import (
	"testing"
	"time"
)

func TestExportFileName(t *testing.T) {
	started := time.Date(2026, 8, 31, 20, 15, 0, 0, time.UTC)
	got := exportFileName("./exports", "  Serpentshrine Cavern ", started)
	want := "./exports/loot_suggestions_serpentshrine_cavern_2026-08-31_201500.csv"
	if got != want {
		t.Fatalf("exportFileName = %q, want %q", got, want)
	}
}
