package facts

import (
	"context"
	"fmt"

	"github.com/chronofact/chronofact/pkg/types"
	"github.com/chronofact/chronofact/pkg/utils"
)

// FindConflicts scans active facts for pairs that disagree: both facts
// mention the same entity in the same role, their validity windows overlap,
// their normalized texts differ, and the texts are similar enough to be
// talking about the same thing rather than merely coexisting. An empty
// entityID and topic scan the whole store.
func (s *Service) FindConflicts(ctx context.Context, entityID, topic string) ([]types.Conflict, error) {
	spec := types.QuerySpec{
		EntityID: entityID,
		Topic:    topic,
		Statuses: []types.FactStatus{types.StatusCanonical, types.StatusCorroborated},
	}
	active, err := s.store.ListFacts(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("list facts for conflict scan: %w", err)
	}

	// Bucket facts by (entity, role) via their mentions.
	type slot struct {
		entityID string
		role     types.MentionRole
	}
	buckets := map[slot][]*types.Fact{}
	for _, fact := range active {
		mentions, err := s.store.MentionsForFact(ctx, fact.ID)
		if err != nil {
			return nil, fmt.Errorf("load mentions of %s: %w", fact.ID, err)
		}
		for _, m := range mentions {
			key := slot{m.EntityID, m.Role}
			buckets[key] = append(buckets[key], fact)
		}
	}

	var conflicts []types.Conflict
	reported := map[string]bool{}
	for _, facts := range buckets {
		for i := 0; i < len(facts); i++ {
			for j := i + 1; j < len(facts); j++ {
				a, b := facts[i], facts[j]
				pairKey := orderedPair(a.ID, b.ID)
				if reported[pairKey] {
					continue
				}
				if !windowsOverlap(a, b) {
					continue
				}
				if utils.NormalizeText(a.Text) == utils.NormalizeText(b.Text) {
					continue
				}
				similarity := utils.Similarity(a.Text, b.Text)
				if similarity < s.cfg.ConflictSimilarityThreshold {
					continue
				}
				reported[pairKey] = true
				conflicts = append(conflicts, types.Conflict{
					Fact1:      a,
					Fact2:      b,
					Similarity: similarity,
				})
			}
		}
	}
	return conflicts, nil
}

func orderedPair(a, b string) string {
	if a < b {
		return a + "\x00" + b
	}
	return b + "\x00" + a
}

func windowsOverlap(a, b *types.Fact) bool {
	aOpen := a.InvalidAt == nil
	bOpen := b.InvalidAt == nil
	return (aOpen || b.ValidAt.Before(*a.InvalidAt)) &&
		(bOpen || a.ValidAt.Before(*b.InvalidAt))
}

// ResolveConflict settles a conflict in favor of keepID. Every losing fact
// is marked superseded by the winner in a single atomic step, with the
// stated reason recorded in its metadata. A loser's window closes at the
// winner's valid_at; losers whose windows started at or after that instant
// keep their window and only change status.
func (s *Service) ResolveConflict(ctx context.Context, keepID string, supersedeIDs []string, reason string) error {
	if len(supersedeIDs) == 0 {
		return &types.ValidationError{Field: "supersede_ids", Reason: "must name at least one fact"}
	}
	if reason == "" {
		return &types.ValidationError{Field: "reason", Reason: "must not be empty"}
	}
	for _, id := range supersedeIDs {
		if id == keepID {
			return &types.ValidationError{Field: "supersede_ids", Reason: "cannot supersede the kept fact"}
		}
	}
	keep, err := s.store.GetFact(ctx, keepID)
	if err != nil {
		return err
	}

	if err := s.store.MarkSupersededBy(ctx, supersedeIDs, keepID, keep.ValidAt, reason); err != nil {
		return err
	}
	s.logger.Info("conflict resolved", "keep_id", keepID, "superseded", len(supersedeIDs), "reason", reason)
	return nil
}
