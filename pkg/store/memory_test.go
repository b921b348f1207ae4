package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronofact/chronofact/pkg/types"
	"github.com/chronofact/chronofact/pkg/utils"
)

func newTestEntity(name string, entityType types.EntityType) *types.Entity {
	now := time.Now().UTC()
	return &types.Entity{
		ID:               uuid.New().String(),
		Name:             name,
		Type:             entityType,
		ResolutionStatus: types.ResolutionResolved,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newTestFact(text string, validAt time.Time) *types.Fact {
	return &types.Fact{
		ID:        uuid.New().String(),
		Text:      text,
		Digest:    utils.ContentDigest(text),
		ValidAt:   validAt,
		Status:    types.StatusCanonical,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStoreEntityLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	entity := newTestEntity("Microsoft", types.EntityTypeOrganization)
	require.NoError(t, s.CreateEntity(ctx, entity))

	got, err := s.GetEntity(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", got.Name)
	assert.Equal(t, types.EntityTypeOrganization, got.Type)

	_, err = s.GetEntity(ctx, "missing")
	assert.True(t, types.IsNotFound(err))
}

func TestMemoryStoreAddAliasIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	entity := newTestEntity("Microsoft", types.EntityTypeOrganization)
	require.NoError(t, s.CreateEntity(ctx, entity))

	alias := types.Alias{Text: "MSFT", Kind: types.AliasKindAbbreviation, Confidence: 1.0}
	require.NoError(t, s.AddAlias(ctx, entity.ID, alias))
	require.NoError(t, s.AddAlias(ctx, entity.ID, alias))
	// Case-insensitive duplicate is still a no-op.
	require.NoError(t, s.AddAlias(ctx, entity.ID, types.Alias{Text: "msft", Kind: types.AliasKindAbbreviation}))

	got, err := s.GetEntity(ctx, entity.ID)
	require.NoError(t, err)
	assert.Len(t, got.Aliases, 1)
}

func TestMemoryStoreMergeEntities(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	keep := newTestEntity("Microsoft", types.EntityTypeOrganization)
	merge := newTestEntity("Microsoft Corporation", types.EntityTypeOrganization)
	require.NoError(t, s.CreateEntity(ctx, keep))
	require.NoError(t, s.CreateEntity(ctx, merge))

	require.NoError(t, s.MergeEntities(ctx, keep.ID, merge.ID))

	merged, err := s.GetEntity(ctx, merge.ID)
	require.NoError(t, err)
	assert.True(t, merged.Merged())
	require.NotNil(t, merged.CanonicalID)
	assert.Equal(t, keep.ID, *merged.CanonicalID)

	// Merging an already-merged entity again is a conflict.
	err = s.MergeEntities(ctx, keep.ID, merge.ID)
	assert.True(t, types.IsConflict(err))
}

func TestMemoryStoreListEntitiesExcludesMerged(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	keep := newTestEntity("Microsoft", types.EntityTypeOrganization)
	merge := newTestEntity("MSFT Corp", types.EntityTypeOrganization)
	person := newTestEntity("Satya Nadella", types.EntityTypePerson)
	require.NoError(t, s.CreateEntity(ctx, keep))
	require.NoError(t, s.CreateEntity(ctx, merge))
	require.NoError(t, s.CreateEntity(ctx, person))
	require.NoError(t, s.MergeEntities(ctx, keep.ID, merge.ID))

	active, err := s.ListEntities(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := s.ListEntities(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	orgs, err := s.ListEntities(ctx, types.EntityTypeOrganization, false)
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}

func TestMemoryStoreCreateFactIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	validAt := time.Date(2014, 2, 4, 0, 0, 0, 0, time.UTC)
	fact := newTestFact("Satya Nadella is CEO of Microsoft", validAt)
	created, isNew, err := s.CreateFact(ctx, fact, nil, nil)
	require.NoError(t, err)
	assert.True(t, isNew)

	dup := newTestFact("Satya  Nadella is CEO of  Microsoft", validAt)
	existing, isNew, err := s.CreateFact(ctx, dup, nil, nil)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, existing.ID)

	// Same text at a different valid_at is a distinct fact.
	later := newTestFact("Satya Nadella is CEO of Microsoft", validAt.AddDate(1, 0, 0))
	_, isNew, err = s.CreateFact(ctx, later, nil, nil)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestMemoryStoreMarkSuperseded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	entity := newTestEntity("Alice", types.EntityTypePerson)
	require.NoError(t, s.CreateEntity(ctx, entity))

	old := newTestFact("Alice works at Acme", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	mention := &types.EntityMention{FactID: old.ID, EntityID: entity.ID, Text: "Alice", Role: types.RoleSubject, Confidence: 1.0}
	_, _, err := s.CreateFact(ctx, old, []*types.EntityMention{mention}, nil)
	require.NoError(t, err)

	newValidAt := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	replacement := newTestFact("Alice works at Globex", newValidAt)
	newMention := &types.EntityMention{FactID: replacement.ID, EntityID: entity.ID, Text: "Alice", Role: types.RoleSubject, Confidence: 1.0}

	got, err := s.MarkSuperseded(ctx, old.ID, replacement, []*types.EntityMention{newMention})
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, got.ID)

	stored, err := s.GetFact(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuperseded, stored.Status)
	require.NotNil(t, stored.InvalidAt)
	assert.True(t, stored.InvalidAt.Equal(newValidAt))
	require.NotNil(t, stored.SupersededByID)
	assert.Equal(t, replacement.ID, *stored.SupersededByID)

	// Superseded is terminal.
	again := newTestFact("Alice works at Initech", newValidAt.AddDate(0, 1, 0))
	_, err = s.MarkSuperseded(ctx, old.ID, again, nil)
	assert.True(t, types.IsConflict(err))
	_, err = s.GetFact(ctx, again.ID)
	assert.True(t, types.IsNotFound(err), "conflicting supersede must not leave the new fact behind")
}

func TestMemoryStoreSetCorroborationKeepsTerminalStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	fact := newTestFact("Acme acquired Globex", time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC))
	_, _, err := s.CreateFact(ctx, fact, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetCorroboration(ctx, fact.ID, []string{"source-1"}, types.StatusCanonical))

	replacement := newTestFact("Globex acquired Acme", time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC))
	_, err = s.MarkSuperseded(ctx, fact.ID, replacement, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetCorroboration(ctx, fact.ID, []string{"source-1", "source-2"}, types.StatusCorroborated))

	got, err := s.GetFact(ctx, fact.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuperseded, got.Status)
	assert.Len(t, got.CorroboratedByIDs, 2)
}

func TestMemoryStoreMarkSupersededByAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	winner := newTestFact("the sky is blue", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	loser := newTestFact("the sky is green", time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC))
	_, _, err := s.CreateFact(ctx, winner, nil, nil)
	require.NoError(t, err)
	_, _, err = s.CreateFact(ctx, loser, nil, nil)
	require.NoError(t, err)

	invalidAt := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	err = s.MarkSupersededBy(ctx, []string{loser.ID, "missing"}, winner.ID, invalidAt, "checked against source")
	assert.True(t, types.IsNotFound(err))

	untouched, err := s.GetFact(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanonical, untouched.Status)

	require.NoError(t, s.MarkSupersededBy(ctx, []string{loser.ID}, winner.ID, invalidAt, "checked against source"))
	resolved, err := s.GetFact(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuperseded, resolved.Status)
	assert.Equal(t, "checked against source", resolved.Metadata["resolution_reason"])
}

func TestMemoryStoreListFactsTemporalFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	jan := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC)

	ended := newTestFact("Bob works at Acme", jan)
	ended.InvalidAt = &jun
	open := newTestFact("Bob lives in Berlin", jan)
	late := newTestFact("Bob works at Globex", dec)
	for _, f := range []*types.Fact{ended, open, late} {
		_, _, err := s.CreateFact(ctx, f, nil, nil)
		require.NoError(t, err)
	}

	// Point-in-time: after the first fact ended, before the last began.
	at := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
	facts, err := s.ListFacts(ctx, types.QuerySpec{At: &at})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, open.ID, facts[0].ID)

	// A fact whose window ends exactly at the query instant is excluded.
	facts, err = s.ListFacts(ctx, types.QuerySpec{At: &jun})
	require.NoError(t, err)
	for _, f := range facts {
		assert.NotEqual(t, ended.ID, f.ID)
	}

	// Range overlap picks up everything touching [feb, jul).
	from := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)
	facts, err = s.ListFacts(ctx, types.QuerySpec{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, facts, 2)

	// Results come back ordered by valid_at.
	all, err := s.ListFacts(ctx, types.QuerySpec{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, !all[0].ValidAt.After(all[1].ValidAt))
	assert.True(t, !all[1].ValidAt.After(all[2].ValidAt))
}

func TestMemoryStoreListFactsStatusAndTopic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	jan := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	canonical := newTestFact("Acme ships rockets", jan)
	superseded := newTestFact("Acme ships anvils", jan)
	_, _, err := s.CreateFact(ctx, canonical, nil, nil)
	require.NoError(t, err)
	_, _, err = s.CreateFact(ctx, superseded, nil, nil)
	require.NoError(t, err)
	_, err = s.MarkSuperseded(ctx, superseded.ID, newTestFact("Acme ships dynamite", jan.AddDate(0, 1, 0)), nil)
	require.NoError(t, err)

	// Default status filter hides superseded facts.
	facts, err := s.ListFacts(ctx, types.QuerySpec{Topic: "acme"})
	require.NoError(t, err)
	for _, f := range facts {
		assert.NotEqual(t, types.StatusSuperseded, f.Status)
	}

	// Explicit status filter surfaces them.
	facts, err = s.ListFacts(ctx, types.QuerySpec{Statuses: []types.FactStatus{types.StatusSuperseded}})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, superseded.ID, facts[0].ID)

	facts, err = s.ListFacts(ctx, types.QuerySpec{Topic: "anvils", Statuses: []types.FactStatus{types.StatusSuperseded}})
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	fact := newTestFact("immutable on read", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	_, _, err := s.CreateFact(ctx, fact, nil, nil)
	require.NoError(t, err)

	got, err := s.GetFact(ctx, fact.ID)
	require.NoError(t, err)
	got.Text = "mutated by caller"
	got.Status = types.StatusSuperseded

	fresh, err := s.GetFact(ctx, fact.ID)
	require.NoError(t, err)
	assert.Equal(t, "immutable on read", fresh.Text)
	assert.Equal(t, types.StatusCanonical, fresh.Status)
}
