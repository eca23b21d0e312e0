package gear

import "strings"

// directSlots are catalog slot names that map one-to-one onto snapshot keys.
var directSlots = map[string]bool{
	"head": true, "neck": true, "shoulder": true, "back": true,
	"chest": true, "waist": true, "legs": true, "feet": true,
	"wrist": true, "hands": true, "finger": true, "trinket": true,
	"ranged": true,
}

// NormalizeSlot converts a catalog slot name (e.g. "Head", "One-Hand") into
// the snapshot's slot key ("head", "main_hand"). Returns "" for slots the
// snapshot does not track.
func NormalizeSlot(catalogSlot string) string {
	if catalogSlot == "" {
		return ""
	}
	s := strings.ToLower(catalogSlot)
	if directSlots[s] {
		return s
	}
	switch s {
	case "main hand", "one-hand", "two-hand":
		return "main_hand"
	case "held in off-hand", "off hand", "shield":
		return "off_hand"
	case "relic", "libram", "totem", "idol", "thrown":
		return "ranged"
	}
	return ""
}

var weaponGroup = []string{"main hand", "one-hand", "two-hand", "held in off-hand", "off hand"}
var offHandGroup = []string{"main hand", "one-hand", "two-hand", "held in off-hand", "off hand", "shield"}
var rangedGroup = []string{"ranged", "relic", "libram", "totem", "idol", "thrown"}

// slotGroups maps a slot key to the set of catalog slot names it is
// interchangeable with when matching loot history. Weapons are one pool:
// winning any weapon counts as a weapon-slot receipt.
var slotGroups = map[string][]string{
	"main hand":        weaponGroup,
	"main_hand":        weaponGroup,
	"one-hand":         weaponGroup,
	"two-hand":         weaponGroup,
	"held in off-hand": offHandGroup,
	"off hand":         offHandGroup,
	"off_hand":         offHandGroup,
	"shield":           {"held in off-hand", "off hand", "shield"},
	"finger":           {"finger"},
	"trinket":          {"trinket"},
	"ranged":           rangedGroup,
	"relic":            rangedGroup,
	"libram":           rangedGroup,
	"totem":            rangedGroup,
	"idol":             rangedGroup,
	"thrown":           rangedGroup,
}

// SlotsForMatching returns the lowercase catalog slot names equivalent to the
// given slot key. A slot with no group matches only itself.
func SlotsForMatching(slot string) []string {
	key := strings.ToLower(slot)
	if group, ok := slotGroups[key]; ok {
		return group
	}
	return []string{key}
}
