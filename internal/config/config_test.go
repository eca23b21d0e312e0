package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TMB_GUILD_ID", "1234")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)

	cfg := LoadConfig()

	if cfg.TMBGuildID != "1234" {
		t.Fatalf("unexpected guild id: %q", cfg.TMBGuildID)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("unexpected provider: %q", cfg.LLMProvider)
	}
	if cfg.LLMModel != "gpt-4o" {
		t.Fatalf("unexpected model default: %q", cfg.LLMModel)
	}
	if cfg.DBPath != "./lootcouncil.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ExportDir != "./exports" {
		t.Fatalf("unexpected export dir default: %q", cfg.ExportDir)
	}
	if cfg.PolicyMode != "simple" {
		t.Fatalf("unexpected policy mode default: %q", cfg.PolicyMode)
	}
	if cfg.AttendanceLookbackDays != 60 || cfg.LootLookbackDays != 14 {
		t.Fatalf("unexpected lookback defaults: %d/%d", cfg.AttendanceLookbackDays, cfg.LootLookbackDays)
	}
	if cfg.ParseFilterMode != "dps_only" {
		t.Fatalf("unexpected parse filter default: %q", cfg.ParseFilterMode)
	}
	if len(cfg.MetricOrder) != len(DefaultMetricOrder) {
		t.Fatalf("unexpected metric order default: %v", cfg.MetricOrder)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.GearMaxAgeHours != 72 {
		t.Fatalf("unexpected gear max age default: %d", cfg.GearMaxAgeHours)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tmb_guild_id: "9999"
llm_provider: "anthropic"
anthropic_api_key: "yaml-key"
llm_model: "claude-opus-4-1"
policy_mode: "custom"
guild_policy_path: "/tmp/policy.txt"
show_attendance: true
show_parses: true
parse_zone_id: 1017
parse_zone_label: "SSC/TK"
attendance_lookback_days: 90
db_path: "/tmp/yaml.db"
metric_order:
  - recent_loot
  - attendance
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("TMB_GUILD_ID", "1234")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("ATTENDANCE_LOOKBACK_DAYS", "30")
	// Pinned rather than asserted from YAML: developer machines routinely
	// export this one.
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg := LoadConfig()

	// Env wins over YAML.
	if cfg.TMBGuildID != "1234" {
		t.Fatalf("env override lost: %q", cfg.TMBGuildID)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("env override lost: %q", cfg.DBPath)
	}
	if cfg.AttendanceLookbackDays != 30 {
		t.Fatalf("env override lost: %d", cfg.AttendanceLookbackDays)
	}
	if cfg.AnthropicAPIKey != "env-key" {
		t.Fatalf("env override lost: %q", cfg.AnthropicAPIKey)
	}

	// YAML values without env overrides survive.
	if cfg.LLMProvider != "anthropic" {
		t.Fatalf("yaml provider lost: %q", cfg.LLMProvider)
	}
	if cfg.LLMModel != "claude-opus-4-1" {
		t.Fatalf("yaml model lost: %q", cfg.LLMModel)
	}
	if cfg.PolicyMode != "custom" || cfg.GuildPolicyPath != "/tmp/policy.txt" {
		t.Fatalf("yaml policy lost: %q/%q", cfg.PolicyMode, cfg.GuildPolicyPath)
	}
	if cfg.ParseZoneID != 1017 || cfg.ParseZoneLabel != "SSC/TK" {
		t.Fatalf("yaml parse config lost: %d/%q", cfg.ParseZoneID, cfg.ParseZoneLabel)
	}
	if len(cfg.MetricOrder) != 2 || cfg.MetricOrder[0] != "recent_loot" {
		t.Fatalf("yaml metric order lost: %v", cfg.MetricOrder)
	}
}

func TestReferenceDay(t *testing.T) {
	now := time.Date(2026, 8, 31, 21, 45, 12, 0, time.UTC)

	cfg := Config{}
	if got := cfg.ReferenceDay(now); !got.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ReferenceDay = %v", got)
	}

	cfg = Config{DevMode: true, ReferenceDate: "2026-06-15"}
	if got := cfg.ReferenceDay(now); !got.Equal(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("dev ReferenceDay = %v", got)
	}

	// The override only applies in dev mode.
	cfg = Config{DevMode: false, ReferenceDate: "2026-06-15"}
	if got := cfg.ReferenceDay(now); !got.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("non-dev ReferenceDay = %v", got)
	}
}

func TestGearMetricGates(t *testing.T) {
	cfg := Config{ShowIlvlComparisons: true, ShowTierTokenCounts: true}
	if cfg.IlvlComparisonEnabled() || cfg.TierTokenCountsEnabled() {
		t.Fatal("gear metrics enabled without the equipped-gear feature")
	}
	cfg.CurrentlyEquippedEnabled = true
	if !cfg.IlvlComparisonEnabled() || !cfg.TierTokenCountsEnabled() {
		t.Fatal("gear metrics disabled with the equipped-gear feature on")
	}
}

func TestSlackConfigured(t *testing.T) {
	if (Config{SlackBotToken: "xoxb-test"}).SlackConfigured() {
		t.Fatal("configured without channel")
	}
	if !(Config{SlackBotToken: "xoxb-test", SlackChannelID: "C123"}).SlackConfigured() {
		t.Fatal("not configured with token and channel")
	}
}
