package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSimplePolicyRuleNumbering(t *testing.T) {
	cfg := baseConfig()
	cfg.MetricOrder = []string{"recent_loot", "attendance", "wishlist_position"}
	e := newTestEngine(t, cfg, standardRoster(), nil)

	rules := e.simplePolicyRules()
	lines := strings.Split(rules, "\n")
	if len(lines) != 3 {
		t.Fatalf("rules = %q", rules)
	}
	// Order follows the configured priority; numbering stays contiguous.
	if !strings.HasPrefix(lines[0], "RULE 1: Give preference to raiders who have received fewer items recently.") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "RULE 2: Give preference to raiders with higher attendance percentage.") {
		t.Fatalf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "RULE 3:") || !strings.Contains(lines[2], "wishlist") {
		t.Fatalf("line 2 = %q", lines[2])
	}
}

func TestSimplePolicyRulesSkipDisabledContiguously(t *testing.T) {
	cfg := baseConfig()
	cfg.MetricOrder = []string{"attendance", "parses", "recent_loot"}
	cfg.ShowParses = false // disabled metric leaves no numbering gap
	e := newTestEngine(t, cfg, standardRoster(), nil)

	rules := e.simplePolicyRules()
	if strings.Contains(rules, "parse") {
		t.Fatalf("disabled metric appeared: %q", rules)
	}
	if !strings.Contains(rules, "RULE 2: Give preference to raiders who have received fewer items recently.") {
		t.Fatalf("numbering not contiguous: %q", rules)
	}
}

func TestLastReceivedRuleText(t *testing.T) {
	cfg := baseConfig()
	cfg.ShowAttendance = false
	cfg.ShowRecentLoot = false
	cfg.ShowWishlistPosition = false
	cfg.ShowLastItemReceived = true
	cfg.MetricOrder = []string{"last_item_received"}
	e := newTestEngine(t, cfg, standardRoster(), nil)

	want := "RULE 1: Give preference to raiders who received an item for this slot longest ago."
	if got := e.simplePolicyRules(); got != want {
		t.Fatalf("rules = %q", got)
	}
}

func TestSimplePolicyRulesNoneEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.ShowAttendance = false
	cfg.ShowRecentLoot = false
	cfg.ShowWishlistPosition = false
	e := newTestEngine(t, cfg, standardRoster(), nil)
	if got := e.simplePolicyRules(); got != "No additional rules configured." {
		t.Fatalf("rules = %q", got)
	}
}

func TestUserPromptStructure(t *testing.T) {
	cfg := baseConfig()
	cfg.TankPriority = true
	cfg.MainsOverAlts = true
	e := newTestEngine(t, cfg, standardRoster(), nil)

	res, err := e.Resolve("Helm of the Fallen Defender")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	prompt := e.userPrompt(res, map[string]int{"Lumen": 2})

	for _, want := range []string{
		"## Item: Helm of the Fallen Defender",
		"Slot: Head",
		"## Candidates",
		"### 1. Lumen",
		"- Class/Spec: Paladin/Holy",
		"- Role: Healer",
		"- Item Priority: Mainspec",
		"- Wishlist Position: #1",
		"- Items assigned this session: 2",
		"### 3. Zumi [ALT]",
		"- This is an ALT character",
		"## Guild Loot Policy Rules",
		"Always prioritise tank-role characters for any mainspec items.",
		"Give preference to main characters over alt characters.",
		"apply them in STRICT ORDER",
		"RULE 1:",
		"## Your Task",
		"Suggestion 1: [Name]",
		"Rationale: [1-2 sentences referencing the deciding policy rule]",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}

	// Tank rule must precede the numbered rules.
	if strings.Index(prompt, "Always prioritise tank-role") > strings.Index(prompt, "RULE 1:") {
		t.Error("tank priority rule not first in policy section")
	}
}

func TestPromptDeterministic(t *testing.T) {
	e := newTestEngine(t, baseConfig(), standardRoster(), nil)
	res, err := e.Resolve("Helm of the Fallen Defender")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	first := e.BuildPrompt(res, nil, true)
	second := e.BuildPrompt(res, nil, true)
	if first != second {
		t.Fatal("identical inputs produced different prompts")
	}
}

func TestSystemPromptConditionalClauses(t *testing.T) {
	cfg := baseConfig()
	e := newTestEngine(t, cfg, standardRoster(), nil)
	res, err := e.Resolve("Helm of the Fallen Defender")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	batch := e.systemPrompt(res, true)
	if !strings.Contains(batch, "Wishlist Position") {
		t.Error("wishlist clause missing with metric enabled")
	}
	if !strings.Contains(batch, "Items assigned this session") {
		t.Error("session tracking clause missing in batch mode")
	}
	if strings.Contains(batch, "Upgrade size") {
		t.Error("ilvl clause present with metric disabled")
	}
	if strings.Contains(batch, "Custom Note") {
		t.Error("custom note clause present with no notes")
	}

	single := e.systemPrompt(res, false)
	if strings.Contains(single, "Items assigned this session") {
		t.Error("session tracking clause present in single-item mode")
	}
}

func TestCustomPolicyTruncation(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("Loot goes to the raid team first. ", 40) // > 800 chars
	path := filepath.Join(dir, "policy.txt")
	if err := os.WriteFile(path, []byte(long), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	got := customPolicySummary(path)
	if !strings.HasSuffix(got, "... (policy truncated for brevity)") {
		t.Fatalf("long policy not truncated: %q", got[len(got)-60:])
	}
	if len(got) > maxPolicyChars+40 {
		t.Fatalf("truncated policy too long: %d", len(got))
	}

	short := "Short policy."
	shortPath := filepath.Join(dir, "short.txt")
	if err := os.WriteFile(shortPath, []byte(short), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if got := customPolicySummary(shortPath); got != short {
		t.Fatalf("short policy altered: %q", got)
	}

	if got := customPolicySummary(filepath.Join(dir, "missing.txt")); got != "No guild policy found." {
		t.Fatalf("missing policy = %q", got)
	}
}

func TestCustomPolicyTruncationKeepsRunesWhole(t *testing.T) {
	dir := t.TempDir()
	// 300 three-byte runes: the byte limit lands inside a rune.
	long := strings.Repeat("规", 300)
	path := filepath.Join(dir, "policy.txt")
	if err := os.WriteFile(path, []byte(long), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	got := customPolicySummary(path)
	if !utf8.ValidString(got) {
		t.Fatal("truncated policy contains a split rune")
	}
	if !strings.HasSuffix(got, "... (policy truncated for brevity)") {
		t.Fatalf("policy not truncated: %q", got[len(got)-40:])
	}
}
