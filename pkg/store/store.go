// Package store provides the persistence layer for entities, facts,
// mentions, and provenance links. Three backends implement the same Store
// interface: an in-memory store (tests, embedding), SQLite, and PostgreSQL.
//
// Every mutation that changes fact status or merge-graph shape is atomic at
// the store boundary, so two concurrent workers cannot both supersede the
// same fact or merge the same entity twice. Fact creation is idempotent on
// (content_digest, valid_at) via the backing uniqueness constraint plus
// fetch-on-conflict, not an application-level lock.
package store

import (
	"context"
	"time"

	"github.com/chronofact/chronofact/pkg/types"
)

// Store is the row-store contract the engine depends on.
type Store interface {
	// Initialize ensures the schema exists.
	Initialize(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error

	// CreateEntity persists a new entity with its alias set.
	CreateEntity(ctx context.Context, entity *types.Entity) error
	// GetEntity retrieves an entity by id, aliases included.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	// ListEntities returns entities, optionally filtered by type. Merged
	// tombstones are excluded unless includeMerged is set.
	ListEntities(ctx context.Context, entityType types.EntityType, includeMerged bool) ([]*types.Entity, error)
	// AddAlias attaches an alias to an entity. Adding the same alias text
	// twice is a no-op.
	AddAlias(ctx context.Context, entityID string, alias types.Alias) error
	// MergeEntities atomically tombstones mergeID with a forwarding pointer
	// to keepID. Returns ConflictError if mergeID is already merged.
	MergeEntities(ctx context.Context, keepID, mergeID string) error
	// UpdateEntityStatus sets the resolution status of an entity.
	UpdateEntityStatus(ctx context.Context, entityID string, status types.ResolutionStatus) error

	// CreateFact persists a fact with its mentions and provenance links.
	// If a fact with the same (content_digest, valid_at) already exists the
	// existing fact is returned unchanged and created is false.
	CreateFact(ctx context.Context, fact *types.Fact, mentions []*types.EntityMention, sources []*types.FactSource) (f *types.Fact, created bool, err error)
	// GetFact retrieves a fact by id.
	GetFact(ctx context.Context, id string) (*types.Fact, error)
	// ListFacts executes a query spec and returns matching facts in
	// ascending valid_at order.
	ListFacts(ctx context.Context, spec types.QuerySpec) ([]*types.Fact, error)
	// MentionsForFact returns the entity mentions attached to a fact.
	MentionsForFact(ctx context.Context, factID string) ([]*types.EntityMention, error)
	// SourcesForFact returns the provenance links attached to a fact.
	SourcesForFact(ctx context.Context, factID string) ([]*types.FactSource, error)

	// MarkSuperseded atomically inserts newFact (with its mentions) and
	// transitions oldID to superseded with invalid_at=newFact.ValidAt and
	// superseded_by_id=newFact.ID. Both writes commit together or neither
	// does. Returns ConflictError if oldID is already superseded.
	MarkSuperseded(ctx context.Context, oldID string, newFact *types.Fact, mentions []*types.EntityMention) (*types.Fact, error)
	// MarkSupersededBy transitions each id in factIDs to superseded with
	// superseded_by_id=keepID and invalid_at=invalidAt, recording reason in
	// metadata, without inserting a new fact. The window only closes when
	// invalidAt falls strictly after the fact's valid_at; otherwise the
	// status still flips but the window is left open. Already-superseded
	// facts cause ConflictError and roll the whole batch back.
	MarkSupersededBy(ctx context.Context, factIDs []string, keepID string, invalidAt time.Time, reason string) error
	// SetCorroboration replaces the corroborating set and status of a fact.
	// A superseded fact keeps its terminal status regardless of the status
	// argument; the set union itself is still recorded.
	SetCorroboration(ctx context.Context, factID string, corroboratedBy []string, status types.FactStatus) error
	// SetInvalidAt sets the invalidation point of a fact, leaving status
	// untouched.
	SetInvalidAt(ctx context.Context, factID string, at time.Time) error
}
