package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/chronofact/chronofact/pkg/types"
	"github.com/chronofact/chronofact/pkg/utils"
)

// Diff compares the believed state at two instants. Facts are keyed by
// normalized text rather than id, so a statement that was superseded and
// re-recorded under a new id does not show up as a change. An optional
// entityID or topic narrows the comparison; without either, facts that
// happen to normalize identically can conflate.
func (e *Engine) Diff(ctx context.Context, t1, t2 time.Time, entityID, topic string) (*types.DiffResult, error) {
	if t2.Before(t1) {
		return nil, &types.ValidationError{Field: "t2", Reason: "must not precede t1"}
	}

	statuses := []types.FactStatus{
		types.StatusCanonical,
		types.StatusCorroborated,
		types.StatusSynthesized,
		types.StatusSuperseded,
	}
	before, err := e.store.ListFacts(ctx, types.QuerySpec{At: &t1, EntityID: entityID, Topic: topic, Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("list facts at t1: %w", err)
	}
	after, err := e.store.ListFacts(ctx, types.QuerySpec{At: &t2, EntityID: entityID, Topic: topic, Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("list facts at t2: %w", err)
	}

	beforeByText := map[string]*types.Fact{}
	for _, fact := range before {
		beforeByText[utils.NormalizeText(fact.Text)] = fact
	}
	afterByText := map[string]*types.Fact{}
	for _, fact := range after {
		afterByText[utils.NormalizeText(fact.Text)] = fact
	}

	result := &types.DiffResult{}
	for _, fact := range after {
		if _, ok := beforeByText[utils.NormalizeText(fact.Text)]; ok {
			result.Unchanged = append(result.Unchanged, fact)
		} else {
			result.Added = append(result.Added, fact)
		}
	}
	for _, fact := range before {
		if _, ok := afterByText[utils.NormalizeText(fact.Text)]; !ok {
			result.Removed = append(result.Removed, fact)
		}
	}
	return result, nil
}
