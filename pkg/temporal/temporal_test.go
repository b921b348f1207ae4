package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/facts"
	"github.com/chronofact/chronofact/pkg/store"
	"github.com/chronofact/chronofact/pkg/types"
)

type fixture struct {
	engine *Engine
	facts  *facts.Service
	store  store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	return &fixture{
		engine: NewEngine(s, nil),
		facts:  facts.NewService(s, config.FactsConfig{}, nil),
		store:  s,
	}
}

func (f *fixture) entity(t *testing.T, name string) *types.Entity {
	t.Helper()
	now := time.Now().UTC()
	entity := &types.Entity{
		ID:               uuid.New().String(),
		Name:             name,
		Type:             types.EntityTypePerson,
		ResolutionStatus: types.ResolutionResolved,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, f.store.CreateEntity(context.Background(), entity))
	return entity
}

func (f *fixture) fact(t *testing.T, text string, validAt time.Time, entityID string) *types.Fact {
	t.Helper()
	var mentions []*types.EntityMention
	if entityID != "" {
		mentions = []*types.EntityMention{{EntityID: entityID, Text: text, Role: types.RoleSubject, Confidence: 1.0}}
	}
	fact, _, err := f.facts.Create(context.Background(), facts.CreateInput{
		Text: text, ValidAt: validAt, Mentions: mentions,
	})
	require.NoError(t, err)
	return fact
}

func TestQueryPointInTimeExcludesClosedWindows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	jan := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	ended := f.fact(t, "Bob works at Acme", jan, "")
	_, err := f.facts.Invalidate(ctx, ended.ID, jun)
	require.NoError(t, err)
	open := f.fact(t, "Bob lives in Berlin", jan, "")

	mar := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := f.engine.Query(ctx, types.QuerySpec{At: &mar})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	sep := time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)
	got, err = f.engine.Query(ctx, types.QuerySpec{At: &sep})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)

	// A window's end instant is excluded.
	got, err = f.engine.Query(ctx, types.QuerySpec{At: &jun})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)
}

func TestQueryRejectsContradictorySpecs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	later := at.AddDate(1, 0, 0)

	_, err := f.engine.Query(ctx, types.QuerySpec{At: &at, From: &at})
	assert.True(t, types.IsValidation(err))

	_, err = f.engine.Query(ctx, types.QuerySpec{From: &later, To: &at})
	assert.True(t, types.IsValidation(err))
}

func TestEntityTimelineSplitsActiveAndHistorical(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.entity(t, "Alice")

	jan2020 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	jun2023 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	old := f.fact(t, "Alice works at Acme", jan2020, alice.ID)
	replacement, err := f.facts.Supersede(ctx, old.ID, "Alice works at Globex", jun2023)
	require.NoError(t, err)

	tl, err := f.engine.EntityTimeline(ctx, alice.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, tl.Active, 1)
	assert.Equal(t, replacement.ID, tl.Active[0].ID)
	require.Len(t, tl.Historical, 1)
	assert.Equal(t, old.ID, tl.Historical[0].ID)

	// The state at an instant between the two valid_at marks shows only
	// the statement that held then.
	mid := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	state := tl.StateAt(mid)
	require.Len(t, state, 1)
	assert.Equal(t, old.ID, state[0].ID)

	state = tl.StateAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, state, 1)
	assert.Equal(t, replacement.ID, state[0].ID)

	// StateAt agrees with a point-in-time query over the same statuses.
	statuses := []types.FactStatus{
		types.StatusCanonical, types.StatusCorroborated,
		types.StatusSynthesized, types.StatusSuperseded,
	}
	queried, err := f.engine.Query(ctx, types.QuerySpec{At: &mid, EntityID: alice.ID, Statuses: statuses})
	require.NoError(t, err)
	require.Len(t, queried, 1)
	assert.Equal(t, state[0].ID, queried[0].ID)

	_, err = f.engine.EntityTimeline(ctx, "missing", nil, nil)
	assert.True(t, types.IsNotFound(err))
}

func TestDiffKeysByNormalizedText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.entity(t, "Alice")

	jan2020 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	jun2023 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	old := f.fact(t, "Alice works at Acme", jan2020, alice.ID)
	f.fact(t, "Alice lives in Berlin", jan2020, alice.ID)
	replacement, err := f.facts.Supersede(ctx, old.ID, "Alice works at Globex", jun2023)
	require.NoError(t, err)

	t1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	diff, err := f.engine.Diff(ctx, t1, t2, alice.ID, "")
	require.NoError(t, err)

	require.Len(t, diff.Added, 1)
	assert.Equal(t, replacement.ID, diff.Added[0].ID)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, old.ID, diff.Removed[0].ID)
	// "Alice lives in Berlin" held at both instants even though the
	// surrounding employment fact changed ids.
	require.Len(t, diff.Unchanged, 1)
	assert.Equal(t, "Alice lives in Berlin", diff.Unchanged[0].Text)

	_, err = f.engine.Diff(ctx, t2, t1, "", "")
	assert.True(t, types.IsValidation(err))
}

func TestDiffSameInstantIsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	jan := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	f.fact(t, "Acme ships rockets", jan, "")

	at := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	diff, err := f.engine.Diff(ctx, at, at, "", "")
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Len(t, diff.Unchanged, 1)
}
