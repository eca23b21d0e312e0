package engine

import (
	"context"
	"log"
	"time"

	"lootcouncil/internal/domain"
	"lootcouncil/internal/llm"
)

// ProgressFunc receives each finished decision during a zone run.
type ProgressFunc func(current, total int, itemName string, decision domain.LootDecision)

// Processor drives loot decisions through the model: prompt, bounded retry,
// reply parsing, and session allocation tracking. One Processor per batch
// run; its Tracker never crosses runs.
type Processor struct {
	engine   *Engine
	provider llm.Provider
	retry    llm.Policy
	tracker  *Tracker

	// Inter-item pause for provider rate limits.
	delay time.Duration
	sleep func(time.Duration)
}

func NewProcessor(e *Engine, provider llm.Provider, retry llm.Policy, delay time.Duration) *Processor {
	return &Processor{
		engine:   e,
		provider: provider,
		retry:    retry,
		tracker:  NewTracker(),
		delay:    delay,
		sleep:    time.Sleep,
	}
}

// Tracker exposes the session allocation table, mainly for summaries.
func (p *Processor) Tracker() *Tracker { return p.tracker }

// ResetSession clears allocation counters for a fresh batch.
func (p *Processor) ResetSession() { p.tracker.Reset() }

// ProcessItem resolves one item and asks the model for suggestions. In
// single-item mode no session counters are read or written. Failures come
// back as unsuccessful decisions, never as panics or partial state.
func (p *Processor) ProcessItem(ctx context.Context, itemName string, singleItem bool) domain.LootDecision {
	res, err := p.engine.Resolve(itemName)
	if err != nil {
		return failedDecision(itemName, "", err.Error())
	}
	if len(res.Candidates) == 0 {
		return failedDecision(itemName, res.Item.Slot, (&NoCandidatesError{Item: itemName}).Error())
	}

	var allocations map[string]int
	if !singleItem {
		names := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			names[i] = c.Name
		}
		allocations = p.tracker.AllocationsFor(names)
	}

	prompt := p.engine.BuildPrompt(res, allocations, !singleItem)

	reply, err := p.retry.Do(ctx, itemName, func() (string, error) {
		return p.provider.Complete(ctx, prompt.System, prompt.User)
	})
	if err != nil {
		d := failedDecision(itemName, res.Item.Slot, err.Error())
		d.DebugPrompt = prompt.Debug()
		return d
	}

	s := ParseReply(reply)
	decision := domain.LootDecision{
		ItemName:      itemName,
		ItemSlot:      res.Item.Slot,
		Suggestion1:   s.First,
		Suggestion2:   s.Second,
		Suggestion3:   s.Third,
		Rationale:     s.Rationale,
		Success:       true,
		DebugPrompt:   prompt.Debug(),
		DebugResponse: reply,
	}

	if !singleItem && decision.Suggestion1 != "" && !IsNone(decision.Suggestion1) {
		p.tracker.Record(decision.Suggestion1)
	}
	return decision
}

// ProcessZone runs every item the zone drops through ProcessItem, pausing
// between items. Cancelling the context stops the run after the current
// item; decisions made so far are returned.
func (p *Processor) ProcessZone(ctx context.Context, zoneName string, progress ProgressFunc) ([]domain.LootDecision, error) {
	items, err := p.engine.ZoneItems(zoneName)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		log.Printf("zone run no items zone=%s", zoneName)
		return nil, nil
	}

	log.Printf("zone run start zone=%s items=%d", zoneName, len(items))
	decisions := make([]domain.LootDecision, 0, len(items))
	for i, itemName := range items {
		if ctx.Err() != nil {
			log.Printf("zone run cancelled zone=%s processed=%d", zoneName, len(decisions))
			break
		}

		decision := p.ProcessItem(ctx, itemName, false)
		decisions = append(decisions, decision)

		if progress != nil {
			progress(i+1, len(items), itemName, decision)
		}
		if i < len(items)-1 && p.delay > 0 {
			p.sleep(p.delay)
		}
	}
	log.Printf("zone run done zone=%s decisions=%d", zoneName, len(decisions))
	return decisions, nil
}

func failedDecision(itemName, slot, errText string) domain.LootDecision {
	return domain.LootDecision{
		ItemName: itemName,
		ItemSlot: slot,
		Err:      errText,
	}
}
