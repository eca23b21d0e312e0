package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"lootcouncil/internal/domain"
)

// ItemNotFoundError reports an item name that matched nothing in the
// catalog. Fatal for that item only; batch callers convert it to a failed
// decision and continue.
type ItemNotFoundError struct {
	Name string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %q not found in item catalog", e.Name)
}

type setBonuses struct {
	TwoPiece  string `json:"2pc"`
	FourPiece string `json:"4pc"`
}

// compatibleItem accepts both the bare-string and the full-object form the
// tokens file uses for compatible_items entries.
type compatibleItem struct {
	ItemName string
	Class    string
	Role     string
	SetName  string
	Bonuses  setBonuses
}

func (ci *compatibleItem) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		ci.ItemName = name
		return nil
	}
	var full struct {
		ItemName string     `json:"item_name"`
		Class    string     `json:"class"`
		Role     string     `json:"role"`
		SetName  string     `json:"set_name"`
		Bonuses  setBonuses `json:"set_bonuses"`
	}
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	ci.ItemName = full.ItemName
	ci.Class = full.Class
	ci.Role = full.Role
	ci.SetName = full.SetName
	ci.Bonuses = full.Bonuses
	return nil
}

type tierToken struct {
	TokenName       string           `json:"token_name"`
	Slot            string           `json:"slot"`
	Ilvl            int              `json:"ilvl"`
	CompatibleItems []compatibleItem `json:"compatible_items"`
}

type tierGroup struct {
	TierVersion string      `json:"tier_version"`
	Tokens      []tierToken `json:"tokens"`
}

type exchangeGroup struct {
	Ilvl  int      `json:"ilvl"`
	Items []string `json:"items"`
}

// Resolver maps item display names to canonical records and, for
// tier-token/exchange items, to the full group of interchangeable
// identifiers.
type Resolver struct {
	catalog  *Catalog
	groups   []tierGroup
	exchange map[string]exchangeGroup // keyed by source item name
}

// NewResolver loads the token/exchange tables from tokensPath. A missing
// file yields empty tables (token resolution simply never matches), not an
// error.
func NewResolver(cat *Catalog, tokensPath string) (*Resolver, error) {
	r := &Resolver{catalog: cat, exchange: make(map[string]exchangeGroup)}

	data, err := os.ReadFile(tokensPath)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("reading tokens file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing tokens file: %w", err)
	}

	for key, value := range raw {
		if strings.HasPrefix(key, "exchange_items") {
			var ex map[string]exchangeGroup
			if err := json.Unmarshal(value, &ex); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", key, err)
			}
			for name, group := range ex {
				r.exchange[name] = group
			}
			continue
		}
		var groups []tierGroup
		if err := json.Unmarshal(value, &groups); err != nil {
			// Unknown non-list sections are skipped, matching the loose
			// structure of the tokens file.
			continue
		}
		r.groups = append(r.groups, groups...)
	}

	return r, nil
}

// Resolve maps a display name (case-insensitive) to a resolved item group.
// Resolution order: tier-token table, exchange table, direct catalog lookup.
// A token/exchange match always wins over a plain catalog hit, even when the
// name is itself a regular item that belongs to a token's compatible list.
func (r *Resolver) Resolve(name string) (domain.ResolvedItem, error) {
	directID, ok := r.catalog.ItemID(name)
	if !ok {
		return domain.ResolvedItem{}, &ItemNotFoundError{Name: name}
	}
	record, _ := r.catalog.Item(directID)

	if token, tierVersion, found := r.findToken(name); found {
		resolved := domain.ResolvedItem{
			Name:        record.Name,
			ItemLevel:   token.Ilvl,
			Slot:        token.Slot,
			Kind:        domain.GroupToken,
			TierVersion: tierVersion,
		}
		if id, ok := r.catalog.ItemID(token.TokenName); ok {
			resolved.ItemIDs = append(resolved.ItemIDs, id)
		}
		for _, ci := range token.CompatibleItems {
			if id, ok := r.catalog.ItemID(ci.ItemName); ok {
				resolved.ItemIDs = append(resolved.ItemIDs, id)
			}
			resolved.SetBonuses = append(resolved.SetBonuses, formatSetBonus(ci))
		}
		if len(resolved.ItemIDs) == 0 {
			resolved.ItemIDs = []int{directID}
		}
		return resolved, nil
	}

	if source, group, found := r.findExchange(name); found {
		resolved := domain.ResolvedItem{
			Name:      record.Name,
			ItemLevel: group.Ilvl,
			Slot:      record.Slot,
			Kind:      domain.GroupExchange,
		}
		if id, ok := r.catalog.ItemID(source); ok {
			resolved.ItemIDs = append(resolved.ItemIDs, id)
		}
		for _, member := range group.Items {
			if id, ok := r.catalog.ItemID(member); ok {
				resolved.ItemIDs = append(resolved.ItemIDs, id)
			}
		}
		if len(resolved.ItemIDs) == 0 {
			resolved.ItemIDs = []int{directID}
		}
		return resolved, nil
	}

	return domain.ResolvedItem{
		ItemIDs:   []int{directID},
		Name:      record.Name,
		ItemLevel: record.ItemLevel,
		Slot:      record.Slot,
		Kind:      domain.GroupSingle,
	}, nil
}

func (r *Resolver) findToken(name string) (tierToken, string, bool) {
	lower := strings.ToLower(name)
	for _, group := range r.groups {
		for _, token := range group.Tokens {
			if strings.ToLower(token.TokenName) == lower {
				return token, group.TierVersion, true
			}
			for _, ci := range token.CompatibleItems {
				if strings.ToLower(ci.ItemName) == lower {
					return token, group.TierVersion, true
				}
			}
		}
	}
	return tierToken{}, "", false
}

func (r *Resolver) findExchange(name string) (string, exchangeGroup, bool) {
	lower := strings.ToLower(name)
	for source, group := range r.exchange {
		if strings.ToLower(source) == lower {
			return source, group, true
		}
		for _, member := range group.Items {
			if strings.ToLower(member) == lower {
				return source, group, true
			}
		}
	}
	return "", exchangeGroup{}, false
}

// IsToken reports whether the name is a tier token's own name.
func (r *Resolver) IsToken(name string) bool {
	lower := strings.ToLower(name)
	for _, group := range r.groups {
		for _, token := range group.Tokens {
			if strings.ToLower(token.TokenName) == lower {
				return true
			}
		}
	}
	return false
}

// IsExchange reports whether the name is an exchange source item.
func (r *Resolver) IsExchange(name string) bool {
	lower := strings.ToLower(name)
	for source := range r.exchange {
		if strings.ToLower(source) == lower {
			return true
		}
	}
	return false
}

// TokenInfo returns the slot and item level a tier token maps to. Used when
// matching received tokens against equipment slots.
func (r *Resolver) TokenInfo(name string) (slot string, ilvl int, ok bool) {
	lower := strings.ToLower(name)
	for _, group := range r.groups {
		for _, token := range group.Tokens {
			if strings.ToLower(token.TokenName) == lower {
				return token.Slot, token.Ilvl, true
			}
		}
	}
	return "", 0, false
}

func formatSetBonus(ci compatibleItem) string {
	var b strings.Builder
	b.WriteString(ci.ItemName)
	if ci.Class != "" || ci.Role != "" {
		b.WriteString(" (")
		b.WriteString(strings.TrimSpace(strings.TrimPrefix(ci.Class+" "+ci.Role, " ")))
		b.WriteString(")")
	}
	if ci.SetName != "" {
		b.WriteString(" - " + ci.SetName)
	}
	if ci.Bonuses.TwoPiece != "" {
		b.WriteString(" | 2pc: " + ci.Bonuses.TwoPiece)
	}
	if ci.Bonuses.FourPiece != "" {
		b.WriteString(" | 4pc: " + ci.Bonuses.FourPiece)
	}
	return b.String()
}
