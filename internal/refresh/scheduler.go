// Package refresh re-fetches the guild data sources on a cron schedule so
// long-running deployments keep reasonably fresh rosters and catalogs.
package refresh

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Source is one refreshable data source (roster exports, item catalog).
type Source struct {
	Name    string
	Refresh func() error
}

// Poster receives the refresh summary; a nil *notify.Notifier satisfies it
// harmlessly.
type Poster interface {
	PostText(msg string) error
}

// RunOnce refreshes every source and returns a human-readable summary.
// Individual source failures are collected, not fatal.
func RunOnce(sources []Source) string {
	var ok, failed []string
	for _, src := range sources {
		if err := src.Refresh(); err != nil {
			log.Printf("refresh failed source=%s err=%v", src.Name, err)
			failed = append(failed, fmt.Sprintf("%s (%v)", src.Name, err))
			continue
		}
		ok = append(ok, src.Name)
	}

	var parts []string
	if len(ok) > 0 {
		parts = append(parts, fmt.Sprintf("refreshed %s", strings.Join(ok, ", ")))
	}
	if len(failed) > 0 {
		parts = append(parts, fmt.Sprintf("failed %s", strings.Join(failed, ", ")))
	}
	if len(parts) == 0 {
		return "nothing to refresh"
	}
	return strings.Join(parts, "; ")
}

// Start runs the sources on the given 5-field cron expression (minute hour
// day-of-month month day-of-week) in a background goroutine. An empty
// schedule disables the scheduler; an invalid one logs and disables it
// rather than taking the process down.
func Start(schedule string, sources []Source, poster Poster) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("Background refresh disabled (refresh_schedule not set)")
		return
	}
	if len(sources) == 0 {
		log.Println("Background refresh disabled: no sources")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid refresh_schedule '%s': %v — background refresh disabled", schedule, err)
		return
	}

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}
	log.Printf("Background refresh scheduled (cron: %s) for %s", schedule, strings.Join(names, " + "))

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next refresh at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			summary := RunOnce(sources)
			log.Printf("Refresh complete: %s", summary)
			if poster != nil {
				if postErr := poster.PostText("Data refresh complete: " + summary); postErr != nil {
					log.Printf("Refresh post error: %v", postErr)
				}
			}
		}
	}()
}
