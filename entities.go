package chronofact

import (
	"context"

	"github.com/chronofact/chronofact/pkg/types"
)

// ResolveEntity finds the canonical entity for a mention using exact, alias
// and fuzzy matching in that order.
func (c *Client) ResolveEntity(ctx context.Context, mention string, entityType types.EntityType) (*types.Entity, error) {
	return c.resolver.Resolve(ctx, mention, entityType)
}

// CreateEntity registers a new entity record.
func (c *Client) CreateEntity(ctx context.Context, name string, entityType types.EntityType) (*types.Entity, error) {
	return c.resolver.Create(ctx, name, entityType)
}

// AddAlias attaches an alias to an entity. Pronouns, generic phrases and
// ambiguous bare given names are dropped without error.
func (c *Client) AddAlias(ctx context.Context, entityID, alias string, kind types.AliasKind) error {
	return c.resolver.AddAlias(ctx, entityID, alias, kind)
}

// MergeEntities folds mergeID into keepID. The merged record stays behind
// as a tombstone pointing at the survivor.
func (c *Client) MergeEntities(ctx context.Context, keepID, mergeID string) (*types.Entity, error) {
	return c.resolver.Merge(ctx, keepID, mergeID)
}

// GetEntity fetches an entity, following merge pointers so callers always
// see the surviving record.
func (c *Client) GetEntity(ctx context.Context, entityID string) (*types.Entity, error) {
	return c.resolver.Canonical(ctx, entityID)
}

// ListEntities returns entities of a type; merged tombstones are included
// only when requested.
func (c *Client) ListEntities(ctx context.Context, entityType types.EntityType, includeMerged bool) ([]*types.Entity, error) {
	return c.store.ListEntities(ctx, entityType, includeMerged)
}
