package chronofact

import (
	"context"
	"time"

	"github.com/chronofact/chronofact/pkg/facts"
	"github.com/chronofact/chronofact/pkg/types"
)

// RecordFact stores a fact. Recording the same normalized statement at the
// same valid_at returns the existing fact with created=false.
func (c *Client) RecordFact(ctx context.Context, in facts.CreateInput) (*types.Fact, bool, error) {
	return c.facts.Create(ctx, in)
}

// GetFact fetches one fact by id.
func (c *Client) GetFact(ctx context.Context, factID string) (*types.Fact, error) {
	return c.store.GetFact(ctx, factID)
}

// Supersede replaces an existing fact with a newer statement. The old fact
// keeps its history; the new one inherits its entity mentions.
func (c *Client) Supersede(ctx context.Context, oldFactID, newText string, validAt time.Time) (*types.Fact, error) {
	return c.facts.Supersede(ctx, oldFactID, newText, validAt)
}

// Corroborate records that another fact independently supports factID.
func (c *Client) Corroborate(ctx context.Context, factID, corroboratingID string) (*types.Fact, error) {
	return c.facts.Corroborate(ctx, factID, corroboratingID)
}

// Synthesize derives a new fact from at least two source facts.
func (c *Client) Synthesize(ctx context.Context, text string, validAt time.Time, derivedFromIDs []string) (*types.Fact, error) {
	return c.facts.Synthesize(ctx, text, validAt, derivedFromIDs)
}

// Invalidate closes a fact's validity window at the given instant.
func (c *Client) Invalidate(ctx context.Context, factID string, at time.Time) (*types.Fact, error) {
	return c.facts.Invalidate(ctx, factID, at)
}

// FindConflicts surfaces pairs of active facts that disagree about the same
// entity and role over overlapping windows. An entityID or topic narrows
// the scan.
func (c *Client) FindConflicts(ctx context.Context, entityID, topic string) ([]types.Conflict, error) {
	return c.facts.FindConflicts(ctx, entityID, topic)
}

// ResolveConflict settles a conflict in favor of keepID, superseding the
// losers with the stated reason on their record.
func (c *Client) ResolveConflict(ctx context.Context, keepID string, supersedeIDs []string, reason string) error {
	return c.facts.ResolveConflict(ctx, keepID, supersedeIDs, reason)
}
