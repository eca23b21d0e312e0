package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second

const defaultCatalogURL = "https://raw.githubusercontent.com/nexus-devs/wow-classic-items/refs/heads/master/data/json/data.json"

// DefaultMetricOrder is the simple-policy priority order used when the
// config file does not specify one.
var DefaultMetricOrder = []string{
	"attendance", "ilvl_comparison", "last_item_received", "parses",
	"recent_loot", "tier_token_counts", "wishlist_position",
}

var knownMetrics = map[string]bool{
	"attendance":         true,
	"recent_loot":        true,
	"wishlist_position":  true,
	"parses":             true,
	"ilvl_comparison":    true,
	"tier_token_counts":  true,
	"last_item_received": true,
}

type Config struct {
	// Guild-roster service (That's My BIS exports).
	TMBGuildID     string `yaml:"tmb_guild_id"`
	TMBSessionPath string `yaml:"tmb_session_path"`

	// Item catalog.
	CatalogURL       string `yaml:"catalog_url"`
	CatalogCachePath string `yaml:"catalog_cache_path"`
	TokensPath       string `yaml:"tokens_path"`

	// Gear snapshot.
	GearSnapshotPath string `yaml:"gear_snapshot_path"`
	GearMaxAgeHours  int    `yaml:"gear_max_age_hours"`

	// Metric toggles.
	ShowAttendance       bool `yaml:"show_attendance"`
	ShowRecentLoot       bool `yaml:"show_recent_loot"`
	ShowWishlistPosition bool `yaml:"show_wishlist_position"`
	ShowParses           bool `yaml:"show_parses"`
	ShowIlvlComparisons  bool `yaml:"show_ilvl_comparisons"`
	ShowTierTokenCounts  bool `yaml:"show_tier_token_counts"`
	ShowLastItemReceived bool `yaml:"show_last_item_received"`
	ShowRaiderNotes      bool `yaml:"show_raider_notes"`

	// Equipped-gear metrics (ilvl comparison, tier counts) additionally
	// require the gear snapshot feature to be on.
	CurrentlyEquippedEnabled bool `yaml:"currently_equipped_enabled"`

	// Candidate filtering and structural rules.
	ShowAltStatus bool `yaml:"show_alt_status"`
	MainsOverAlts bool `yaml:"mains_over_alts"`
	TankPriority  bool `yaml:"tank_priority"`

	// Lookback windows in days.
	AttendanceLookbackDays int `yaml:"attendance_lookback_days"`
	LootLookbackDays       int `yaml:"loot_lookback_days"`

	// Policy.
	PolicyMode      string   `yaml:"policy_mode"` // "simple" or "custom"
	MetricOrder     []string `yaml:"metric_order"`
	GuildPolicyPath string   `yaml:"guild_policy_path"`

	// Combat-log parses.
	ParseZoneID       int    `yaml:"parse_zone_id"`
	ParseZoneLabel    string `yaml:"parse_zone_label"`
	ParseFilterMode   string `yaml:"parse_filter_mode"` // "dps_only" or "everyone"
	ParseSnapshotPath string `yaml:"parse_snapshot_path"`

	// Raider notes.
	RaiderNotesPath string `yaml:"raider_notes_path"`

	// LLM.
	LLMProvider     string  `yaml:"llm_provider"`
	LLMModel        string  `yaml:"llm_model"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	LLMDelaySeconds float64 `yaml:"llm_delay_seconds"`

	// Output.
	ExportDir string `yaml:"export_dir"`
	DBPath    string `yaml:"db_path"`

	// Optional Slack summary posting.
	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	// Optional cron schedule for background source refresh.
	RefreshSchedule string `yaml:"refresh_schedule"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	// Developer mode: when enabled, ReferenceDate overrides "today" for
	// eligibility and lookback calculations.
	DevMode       bool   `yaml:"dev_mode"`
	ReferenceDate string `yaml:"reference_date"` // YYYY-MM-DD
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values.
	envOverride(&cfg.TMBGuildID, "TMB_GUILD_ID")
	envOverride(&cfg.TMBSessionPath, "TMB_SESSION_PATH")
	envOverride(&cfg.CatalogURL, "CATALOG_URL")
	envOverride(&cfg.CatalogCachePath, "CATALOG_CACHE_PATH")
	envOverride(&cfg.TokensPath, "TOKENS_PATH")
	envOverride(&cfg.GearSnapshotPath, "GEAR_SNAPSHOT_PATH")
	envOverride(&cfg.PolicyMode, "POLICY_MODE")
	envOverride(&cfg.GuildPolicyPath, "GUILD_POLICY_PATH")
	envOverride(&cfg.RaiderNotesPath, "RAIDER_NOTES_PATH")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.ExportDir, "EXPORT_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.RefreshSchedule, "REFRESH_SCHEDULE")
	envOverride(&cfg.ReferenceDate, "REFERENCE_DATE")
	envOverrideInt(&cfg.AttendanceLookbackDays, "ATTENDANCE_LOOKBACK_DAYS")
	envOverrideInt(&cfg.LootLookbackDays, "LOOT_LOOKBACK_DAYS")
	envOverride(&cfg.ParseSnapshotPath, "PARSE_SNAPSHOT_PATH")
	envOverrideInt(&cfg.ParseZoneID, "PARSE_ZONE_ID")
	envOverrideInt(&cfg.GearMaxAgeHours, "GEAR_MAX_AGE_HOURS")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideFloat(&cfg.LLMDelaySeconds, "LLM_DELAY_SECONDS")
	envOverrideBool(&cfg.DevMode, "DEV_MODE")

	// Defaults.
	if cfg.CatalogURL == "" {
		cfg.CatalogURL = defaultCatalogURL
	}
	if cfg.CatalogCachePath == "" {
		cfg.CatalogCachePath = "./cache/item_catalog.json"
	}
	if cfg.TokensPath == "" {
		cfg.TokensPath = "./data/tokens.json"
	}
	if cfg.GearSnapshotPath == "" {
		cfg.GearSnapshotPath = "./cache/raider_gear.json"
	}
	if cfg.GearMaxAgeHours == 0 {
		cfg.GearMaxAgeHours = 72
	}
	if cfg.AttendanceLookbackDays == 0 {
		cfg.AttendanceLookbackDays = 60
	}
	if cfg.LootLookbackDays == 0 {
		cfg.LootLookbackDays = 14
	}
	if cfg.PolicyMode == "" {
		cfg.PolicyMode = "simple"
	}
	if len(cfg.MetricOrder) == 0 {
		cfg.MetricOrder = append([]string(nil), DefaultMetricOrder...)
	}
	if cfg.ParseFilterMode == "" {
		cfg.ParseFilterMode = "dps_only"
	}
	if cfg.ParseSnapshotPath == "" {
		cfg.ParseSnapshotPath = "./cache/parses.json"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMModel == "" {
		switch cfg.LLMProvider {
		case "openai":
			cfg.LLMModel = "gpt-4o"
		default:
			cfg.LLMModel = "claude-sonnet-4-5"
		}
	}
	if cfg.LLMDelaySeconds == 0 {
		cfg.LLMDelaySeconds = 2.0
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "./exports"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./lootcouncil.db"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)
	}

	// Validate.
	if cfg.TMBGuildID == "" {
		log.Fatalf("Required config 'tmb_guild_id' is not set (via config.yaml or env var)")
	}
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}
	if cfg.PolicyMode != "simple" && cfg.PolicyMode != "custom" {
		log.Fatalf("policy_mode must be 'simple' or 'custom', got '%s'", cfg.PolicyMode)
	}
	if cfg.ParseFilterMode != "dps_only" && cfg.ParseFilterMode != "everyone" {
		log.Fatalf("parse_filter_mode must be 'dps_only' or 'everyone', got '%s'", cfg.ParseFilterMode)
	}
	for _, m := range cfg.MetricOrder {
		if !knownMetrics[m] {
			log.Fatalf("unknown metric '%s' in metric_order", m)
		}
	}
	if cfg.AttendanceLookbackDays < 1 {
		log.Fatalf("invalid attendance_lookback_days '%d': must be >= 1", cfg.AttendanceLookbackDays)
	}
	if cfg.LootLookbackDays < 1 {
		log.Fatalf("invalid loot_lookback_days '%d': must be >= 1", cfg.LootLookbackDays)
	}
	if cfg.LLMDelaySeconds < 0 {
		log.Fatalf("invalid llm_delay_seconds '%f': must be >= 0", cfg.LLMDelaySeconds)
	}
	if cfg.ReferenceDate != "" {
		if _, err := time.Parse("2006-01-02", cfg.ReferenceDate); err != nil {
			log.Fatalf("invalid reference_date '%s': %v", cfg.ReferenceDate, err)
		}
	}

	return cfg
}

// ReferenceDay returns the date loot calculations are anchored to. The
// configured override applies only in dev mode; otherwise today.
func (c Config) ReferenceDay(now time.Time) time.Time {
	if c.DevMode && c.ReferenceDate != "" {
		if d, err := time.Parse("2006-01-02", c.ReferenceDate); err == nil {
			return d
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// IlvlComparisonEnabled reports whether the ilvl-upgrade metric is active.
// It requires both its own toggle and the gear snapshot feature.
func (c Config) IlvlComparisonEnabled() bool {
	return c.CurrentlyEquippedEnabled && c.ShowIlvlComparisons
}

// TierTokenCountsEnabled reports whether the tier-token-count metric is
// active (gear snapshot feature plus its own toggle).
func (c Config) TierTokenCountsEnabled() bool {
	return c.CurrentlyEquippedEnabled && c.ShowTierTokenCounts
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}
