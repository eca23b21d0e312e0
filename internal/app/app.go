// Package app wires configuration, data sources, the decision engine and
// outputs into the loot council command.
package app

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lootcouncil/internal/catalog"
	"lootcouncil/internal/config"
	"lootcouncil/internal/domain"
	"lootcouncil/internal/engine"
	"lootcouncil/internal/gear"
	"lootcouncil/internal/httpx"
	"lootcouncil/internal/llm"
	"lootcouncil/internal/notify"
	"lootcouncil/internal/parses"
	"lootcouncil/internal/refresh"
	"lootcouncil/internal/storage/sqlite"
	"lootcouncil/internal/tmb"
)

func Main() {
	itemFlag := flag.String("item", "", "decide one item and print the suggestions")
	zoneFlag := flag.String("zone", "", "run every item the zone drops and export a CSV")
	refreshFlag := flag.Bool("refresh", false, "re-fetch roster data and the item catalog, then exit")
	serveFlag := flag.Bool("serve", false, "stay running and refresh sources on the configured cron schedule")
	showPromptFlag := flag.Bool("show-prompt", false, "print the full prompt alongside a single-item decision")
	flag.Parse()

	modes := 0
	for _, on := range []bool{*itemFlag != "", *zoneFlag != "", *refreshFlag, *serveFlag} {
		if on {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -item, -zone, -refresh or -serve is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf("Config loaded. Guild=%s Provider=%s Model=%s PolicyMode=%s ExternalHTTPTimeout=%s",
		cfg.TMBGuildID, cfg.LLMProvider, cfg.LLMModel, cfg.PolicyMode, appliedHTTPTimeout)

	cat := catalog.NewCatalog(cfg.CatalogURL, cfg.CatalogCachePath)
	if err := cat.Load(); err != nil {
		log.Fatalf("Failed to load item catalog: %v", err)
	}
	log.Printf("Item catalog ready: %d items", cat.Len())

	resolver, err := catalog.NewResolver(cat, cfg.TokensPath)
	if err != nil {
		log.Fatalf("Failed to load token tables: %v", err)
	}

	roster := tmb.NewClient(cfg.TMBGuildID, cfg.TMBSessionPath)

	sources := []refresh.Source{
		{Name: "roster", Refresh: roster.RefreshAll},
		{Name: "catalog", Refresh: cat.Refresh},
	}
	notifier := notify.New(cfg)

	if *refreshFlag {
		log.Printf("Refresh: %s", refresh.RunOnce(sources))
		return
	}
	if *serveFlag {
		refresh.Start(cfg.RefreshSchedule, sources, notifier)
		waitForShutdown()
		return
	}

	var gearSource engine.GearSource
	if cfg.CurrentlyEquippedEnabled {
		snapshot, err := gear.Load(cfg.GearSnapshotPath)
		if err != nil {
			log.Printf("Gear snapshot unavailable, equipped-gear metrics off: %v", err)
		} else {
			maxAge := time.Duration(cfg.GearMaxAgeHours) * time.Hour
			if snapshot.Stale(time.Now(), maxAge) {
				log.Printf("Gear snapshot is older than %s; consider re-exporting %s",
					maxAge, cfg.GearSnapshotPath)
			}
			log.Printf("Gear snapshot loaded: %d raiders", snapshot.RaiderCount())
			gearSource = snapshot
		}
	}

	var parseCache *parses.Cache
	if cfg.ShowParses && cfg.ParseZoneID != 0 {
		parseCache = parses.NewCache(parses.NewFileFetcher(cfg.ParseSnapshotPath))
	}

	eng := engine.New(cfg, roster, cat, resolver, gearSource, parseCache)

	apiKey := cfg.AnthropicAPIKey
	if cfg.LLMProvider == "openai" {
		apiKey = cfg.OpenAIAPIKey
	}
	provider, err := llm.NewProvider(cfg.LLMProvider, cfg.LLMModel, apiKey)
	if err != nil {
		log.Fatalf("Failed to build LLM provider: %v", err)
	}

	delay := time.Duration(cfg.LLMDelaySeconds * float64(time.Second))
	processor := engine.NewProcessor(eng, provider, llm.DefaultPolicy(), delay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *itemFlag != "" {
		runSingleItem(ctx, processor, *itemFlag, *showPromptFlag)
		return
	}
	runZone(ctx, cfg, processor, *zoneFlag, notifier)
}

func runSingleItem(ctx context.Context, processor *engine.Processor, itemName string, showPrompt bool) {
	decision := processor.ProcessItem(ctx, itemName, true)
	if showPrompt && decision.DebugPrompt != "" {
		fmt.Println(decision.DebugPrompt)
		fmt.Println()
	}
	printDecision(decision)
	if !decision.Success {
		os.Exit(1)
	}
}

func runZone(ctx context.Context, cfg config.Config, processor *engine.Processor, zoneName string, notifier *notify.Notifier) {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open history database: %v", err)
	}
	defer store.Close()

	startedAt := time.Now()
	runID, err := store.BeginRun(zoneName, "zone", startedAt)
	if err != nil {
		log.Fatalf("Failed to record run: %v", err)
	}

	processor.ResetSession()
	decisions, err := processor.ProcessZone(ctx, zoneName, func(current, total int, itemName string, d domain.LootDecision) {
		log.Printf("progress item=%q %d/%d status=%q", itemName, current, total, d.Status())
		if insertErr := store.InsertDecision(runID, d); insertErr != nil {
			log.Printf("history insert failed item=%q err=%v", itemName, insertErr)
		}
	})
	if err != nil {
		log.Fatalf("Zone run failed: %v", err)
	}

	exportPath := ""
	if len(decisions) > 0 {
		exportPath = exportFileName(cfg.ExportDir, zoneName, startedAt)
		if err := engine.WriteDecisionsCSV(decisions, exportPath); err != nil {
			log.Fatalf("Failed to write CSV: %v", err)
		}
		log.Printf("Export written: %s", exportPath)
	}

	errorCount := 0
	for _, d := range decisions {
		if !d.Success {
			errorCount++
		}
	}
	if err := store.FinishRun(runID, time.Now(), len(decisions), errorCount, exportPath); err != nil {
		log.Printf("history finish failed err=%v", err)
	}

	if err := notifier.PostBatchSummary(zoneName, decisions, exportPath); err != nil {
		log.Printf("Slack summary failed: %v", err)
	}

	log.Printf("Zone run complete zone=%q items=%d errors=%d", zoneName, len(decisions), errorCount)
}

func printDecision(d domain.LootDecision) {
	fmt.Printf("Item: %s\n", d.ItemName)
	if d.ItemSlot != "" {
		fmt.Printf("Slot: %s\n", d.ItemSlot)
	}
	if !d.Success {
		fmt.Printf("Status: %s\n", d.Status())
		return
	}
	fmt.Printf("Suggestion 1: %s\n", d.Suggestion1)
	fmt.Printf("Suggestion 2: %s\n", d.Suggestion2)
	fmt.Printf("Suggestion 3: %s\n", d.Suggestion3)
	fmt.Printf("Rationale: %s\n", d.Rationale)
}

func exportFileName(dir, zoneName string, startedAt time.Time) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(zoneName), " ", "_"))
	return fmt.Sprintf("%s/loot_suggestions_%s_%s.csv", dir, slug, startedAt.Format("2006-01-02_150405"))
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	log.Println("Running; press Ctrl-C to stop")
	<-sig
	log.Println("Shutting down")
}
