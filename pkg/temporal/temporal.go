// Package temporal answers questions about what was believed when.
//
// All queries run against fact validity windows, half-open intervals
// [valid_at, invalid_at) on the event clock. A fact is visible at instant t
// when valid_at <= t and t falls before invalid_at, or the window is still
// open.
package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chronofact/chronofact/pkg/store"
	"github.com/chronofact/chronofact/pkg/types"
)

// Engine evaluates temporal queries over a Store.
type Engine struct {
	store  store.Store
	logger *slog.Logger
}

// NewEngine creates a query Engine. A nil logger falls back to slog.Default.
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, logger: logger}
}

// Query returns the facts matching spec, ordered by valid_at. When spec.At
// is set the result is a point-in-time snapshot; From/To select facts whose
// windows overlap the range.
func (e *Engine) Query(ctx context.Context, spec types.QuerySpec) ([]*types.Fact, error) {
	if spec.At != nil && (spec.From != nil || spec.To != nil) {
		return nil, &types.ValidationError{Field: "at", Reason: "cannot combine a point-in-time query with a range"}
	}
	if spec.From != nil && spec.To != nil && spec.To.Before(*spec.From) {
		return nil, &types.ValidationError{Field: "to", Reason: "must not precede from"}
	}
	return e.store.ListFacts(ctx, spec)
}

// Timeline is an entity's fact history split into what still holds and what
// has ended or been replaced.
type Timeline struct {
	EntityID string `json:"entity_id"`
	// Active facts still hold: canonical, corroborated or synthesized
	// with an open window.
	Active []*types.Fact `json:"active"`
	// Historical facts have a closed window or were superseded.
	Historical []*types.Fact `json:"historical"`
}

// StateAt returns the facts from the timeline that were valid at t,
// superseded ones included when their window covers t.
func (tl *Timeline) StateAt(t time.Time) []*types.Fact {
	var state []*types.Fact
	for _, fact := range tl.Active {
		if fact.ValidAtTime(t) {
			state = append(state, fact)
		}
	}
	for _, fact := range tl.Historical {
		if fact.ValidAtTime(t) {
			state = append(state, fact)
		}
	}
	sort.Slice(state, func(i, j int) bool {
		if state[i].ValidAt.Equal(state[j].ValidAt) {
			return state[i].ID < state[j].ID
		}
		return state[i].ValidAt.Before(state[j].ValidAt)
	})
	return state
}

// EntityTimeline assembles the full fact history for an entity, every
// status included, ordered by valid_at. Optional from/to restrict the
// timeline to facts whose windows overlap the range.
func (e *Engine) EntityTimeline(ctx context.Context, entityID string, from, to *time.Time) (*Timeline, error) {
	if _, err := e.store.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, &types.ValidationError{Field: "to", Reason: "must not precede from"}
	}
	facts, err := e.store.ListFacts(ctx, types.QuerySpec{
		EntityID: entityID,
		From:     from,
		To:       to,
		Statuses: []types.FactStatus{
			types.StatusCanonical,
			types.StatusCorroborated,
			types.StatusSynthesized,
			types.StatusSuperseded,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list facts for timeline: %w", err)
	}

	tl := &Timeline{EntityID: entityID}
	for _, fact := range facts {
		if fact.Status != types.StatusSuperseded && fact.InvalidAt == nil {
			tl.Active = append(tl.Active, fact)
			continue
		}
		tl.Historical = append(tl.Historical, fact)
	}
	return tl, nil
}
