package chronofact

import (
	"context"
	"time"

	"github.com/chronofact/chronofact/pkg/temporal"
	"github.com/chronofact/chronofact/pkg/types"
)

// Query evaluates a temporal query: point-in-time with spec.At, range
// overlap with spec.From/To, plus topic, entity and status filters.
func (c *Client) Query(ctx context.Context, spec types.QuerySpec) ([]*types.Fact, error) {
	return c.temporal.Query(ctx, spec)
}

// Timeline returns an entity's full fact history split into active and
// historical facts, optionally restricted to a time range.
func (c *Client) Timeline(ctx context.Context, entityID string, from, to *time.Time) (*temporal.Timeline, error) {
	return c.temporal.EntityTimeline(ctx, entityID, from, to)
}

// Diff compares what was believed at two instants, keyed by normalized
// fact text so supersession chains don't read as changes. An entityID or
// topic narrows the comparison.
func (c *Client) Diff(ctx context.Context, t1, t2 time.Time, entityID, topic string) (*types.DiffResult, error) {
	return c.temporal.Diff(ctx, t1, t2, entityID, topic)
}
