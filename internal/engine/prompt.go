package engine

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Custom policy text is clipped so one verbose document cannot crowd out
// the candidate data.
const maxPolicyChars = 800

const systemPromptBase = `You are an expert World of Warcraft loot council assistant making fair loot distribution decisions.

Use the guild policy rules as the basis for all decisions.

IMPORTANT CONTEXT:
- "Item Priority: Mainspec" means this item is for the player's primary raid role
- "Item Priority: Offspec" means this item is for an alternate role the player sometimes plays`

const wishlistPositionContext = `- "Wishlist Position" indicates how much the player wants this item (lower = more desired)`

const ilvlComparisonContext = `- "Upgrade size" is measured in item level difference compared to currently equipped gear (higher = better upgrade)`

const sessionTrackingContext = `- "Items assigned this session" tracks how many items a player has received in the current loot council session, in order to prevent funnelling loot to the same players repeatedly.`

const customNoteContext = `- "Custom Note" contains officer-provided notes about specific raiders relevant to loot decisions.`

const guildPriorityNoteContext = `- "Guild Priority Note" contains overarching guidelines on how this item should be distributed.`

const systemPromptFooter = `
Be concise. Output only the requested format with a brief rationale.`

// PromptBundle is one complete request: the system prompt tailored to the
// enabled metrics and the user prompt carrying the candidate data.
type PromptBundle struct {
	System string
	User   string
}

// Debug renders both prompts for the decision's diagnostic field.
func (p PromptBundle) Debug() string {
	return "[SYSTEM]\n" + p.System + "\n\n[USER]\n" + p.User
}

// BuildPrompt renders the resolution into a deterministic prompt pair.
// allocations carries this session's top-suggestion counts; sessionTracking
// is false in single-item mode, which also drops the tracking context from
// the system prompt.
func (e *Engine) BuildPrompt(res *Resolution, allocations map[string]int, sessionTracking bool) PromptBundle {
	return PromptBundle{
		System: e.systemPrompt(res, sessionTracking),
		User:   e.userPrompt(res, allocations),
	}
}

func (e *Engine) systemPrompt(res *Resolution, sessionTracking bool) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)
	if e.cfg.ShowWishlistPosition {
		b.WriteString("\n" + wishlistPositionContext)
	}
	if e.cfg.IlvlComparisonEnabled() {
		b.WriteString("\n" + ilvlComparisonContext)
	}
	if sessionTracking {
		b.WriteString("\n" + sessionTrackingContext)
	}
	if res.HasCustomNotes {
		b.WriteString("\n" + customNoteContext)
	}
	if res.Item.PrioNote != "" {
		b.WriteString("\n" + guildPriorityNoteContext)
	}
	b.WriteString("\n" + systemPromptFooter)
	return b.String()
}

func (e *Engine) userPrompt(res *Resolution, allocations map[string]int) string {
	cfg := e.cfg
	var b strings.Builder

	fmt.Fprintf(&b, "## Item: %s\n", res.Item.Name)
	if res.Item.Slot != "" {
		fmt.Fprintf(&b, "Slot: %s\n", res.Item.Slot)
	}
	if res.Item.PrioNote != "" {
		fmt.Fprintf(&b, "Guild Priority Note: %s\n", res.Item.PrioNote)
	}
	b.WriteString("\n## Candidates\n\n")

	for i, c := range res.Candidates {
		name := c.Name
		if cfg.ShowAltStatus && c.IsAlt {
			name += " [ALT]"
		}
		if c.IsOffspec {
			name += " [OFFSPEC]"
		}
		fmt.Fprintf(&b, "### %d. %s\n", i+1, name)
		fmt.Fprintf(&b, "- Class/Spec: %s\n", c.ClassSpec)
		fmt.Fprintf(&b, "- Role: %s\n", displayRole(c.Role))
		if c.IsOffspec {
			b.WriteString("- Item Priority: Offspec (for alternate role)\n")
		} else {
			b.WriteString("- Item Priority: Mainspec\n")
		}
		if cfg.ShowWishlistPosition {
			fmt.Fprintf(&b, "- Wishlist Position: #%d\n", c.WishlistOrder)
		}
		if cfg.ShowAttendance {
			fmt.Fprintf(&b, "- Attendance: %.1f%%\n", c.AttendancePct)
		}
		if cfg.ShowRecentLoot {
			fmt.Fprintf(&b, "- Items Won (Last %d Days): %d\n", cfg.LootLookbackDays, c.RecentLoot)
		}
		if count, ok := allocations[c.Name]; ok && count > 0 {
			fmt.Fprintf(&b, "- Items assigned this session: %d\n", count)
		}
		if cfg.ShowAltStatus && c.IsAlt {
			b.WriteString("- This is an ALT character\n")
		}
		if c.ReceivedFlagWithoutDate {
			b.WriteString("- Note: wishlist marks this item received but no date was recorded\n")
		}
		if cfg.ShowLastItemReceived && res.Item.Slot != "" {
			if c.LastForSlot.Found {
				fmt.Fprintf(&b, "- Last %s received: %d days ago\n", res.Item.Slot, c.LastForSlot.DaysAgo)
			} else {
				fmt.Fprintf(&b, "- Last %s received: Never\n", res.Item.Slot)
			}
		}
		if c.ParsesFetched {
			label := cfg.ParseZoneLabel
			if label == "" {
				label = "Zone"
			}
			if c.Parses != nil && (c.Parses.BestAvg != nil || c.Parses.MedianAvg != nil) {
				fmt.Fprintf(&b, "- %s Parses: Best %s, Median %s\n",
					label, formatParse(c.Parses.BestAvg), formatParse(c.Parses.MedianAvg))
			} else {
				fmt.Fprintf(&b, "- %s Parses: None recorded.\n", label)
			}
		}
		if cfg.IlvlComparisonEnabled() && res.Item.ItemLevel > 0 {
			switch {
			case !c.Upgrade.Known:
				b.WriteString("- Upgrade size: Unknown (no equipped data)\n")
			case len(c.Upgrade.Deltas) == 1:
				fmt.Fprintf(&b, "- Upgrade size: %d item levels\n", c.Upgrade.Deltas[0])
			default:
				fmt.Fprintf(&b, "- Upgrade size: %d / %d item levels\n", c.Upgrade.Deltas[0], c.Upgrade.Deltas[1])
			}
		}
		if cfg.TierTokenCountsEnabled() && res.Item.TierVersion != "" && c.HasTierCount {
			fmt.Fprintf(&b, "- Tier tokens equipped: %d\n", c.TierTokenCount)
		}
		if c.Note != "" {
			fmt.Fprintf(&b, "- Custom Note: %s\n", c.Note)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Guild Loot Policy Rules\n")
	if cfg.TankPriority {
		b.WriteString("Always prioritise tank-role characters for any mainspec items.\n")
	}
	if cfg.ShowAltStatus && cfg.MainsOverAlts {
		b.WriteString("Give preference to main characters over alt characters.\n")
	}
	if cfg.PolicyMode == "simple" {
		b.WriteString("For the following rules, apply them in STRICT ORDER (Rule 1 = highest priority):\n")
		b.WriteString(e.simplePolicyRules() + "\n")
	} else {
		b.WriteString(customPolicySummary(cfg.GuildPolicyPath) + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## Your Task\n")
	b.WriteString("Select Suggestion 1, Suggestion 2, and Suggestion 3 recipients for this item.\n")
	b.WriteString("- If fewer than 3 eligible candidates exist, use \"None\" for empty slots\n")
	b.WriteString("- Briefly reference which policy rule(s) determined your Suggestion 1 choice\n")
	b.WriteString("\n")
	b.WriteString("Respond in this exact format:\n")
	b.WriteString("Suggestion 1: [Name]\n")
	b.WriteString("Suggestion 2: [Name or None]\n")
	b.WriteString("Suggestion 3: [Name or None]\n")
	b.WriteString("Rationale: [1-2 sentences referencing the deciding policy rule]")

	return b.String()
}

// simplePolicyRules renders the enabled metrics as numbered rules following
// the configured priority order. Metrics missing from the order are appended
// in declaration order so a stale config still covers everything. Numbering
// is contiguous across enabled rules only.
func (e *Engine) simplePolicyRules() string {
	ordered := make([]Metric, 0, len(AllMetrics))
	seen := make(map[Metric]bool)
	for _, name := range e.cfg.MetricOrder {
		if m, ok := ParseMetric(name); ok && !seen[m] {
			ordered = append(ordered, m)
			seen[m] = true
		}
	}
	for _, m := range AllMetrics {
		if !seen[m] {
			ordered = append(ordered, m)
		}
	}

	var rules []string
	num := 1
	for _, m := range ordered {
		if !m.EnabledIn(e.cfg) {
			continue
		}
		rules = append(rules, fmt.Sprintf("RULE %d: %s", num, m.RuleText()))
		num++
	}
	if len(rules) == 0 {
		return "No additional rules configured."
	}
	return strings.Join(rules, "\n")
}

func customPolicySummary(path string) string {
	if path == "" {
		return "No guild policy found."
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "No guild policy found."
	}
	text := string(data)
	if len(text) <= maxPolicyChars {
		return text
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := maxPolicyChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n... (policy truncated for brevity)"
}

func displayRole(role string) string {
	switch role {
	case "Heal":
		return "Healer"
	case "Melee":
		return "Melee DPS"
	case "Ranged":
		return "Ranged DPS"
	}
	return role
}

func formatParse(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *v)
}
