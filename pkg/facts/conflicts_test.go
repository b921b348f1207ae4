package facts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronofact/chronofact/pkg/types"
)

func TestFindConflictsDetectsDivergentOverlap(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	alice := newStoredEntity(t, s, "Alice")

	jan := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)

	first, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice works at Acme",
		ValidAt:  jan,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)
	second, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice works at Globex",
		ValidAt:  mar,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)

	conflicts, err := svc.FindConflicts(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	ids := []string{conflicts[0].Fact1.ID, conflicts[0].Fact2.ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.Greater(t, conflicts[0].Similarity, 0.0)

	scoped, err := svc.FindConflicts(ctx, "", "works at")
	require.NoError(t, err)
	assert.Len(t, scoped, 1)

	unrelated, err := svc.FindConflicts(ctx, "", "acquisition")
	require.NoError(t, err)
	assert.Empty(t, unrelated)
}

func TestFindConflictsIgnoresDisjointWindows(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	alice := newStoredEntity(t, s, "Alice")

	jan := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)

	first, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice works at Acme",
		ValidAt:  jan,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)
	// Closing the first fact's window before the second opens removes
	// the overlap.
	_, err = svc.Invalidate(ctx, first.ID, jun)
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, CreateInput{
		Text:     "Alice works at Globex",
		ValidAt:  jun,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)

	conflicts, err := svc.FindConflicts(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestFindConflictsIgnoresDifferentRoles(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	acme := newStoredEntity(t, s, "Acme")

	jan := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := svc.Create(ctx, CreateInput{
		Text:     "Acme acquired a competitor",
		ValidAt:  jan,
		Mentions: []*types.EntityMention{mention(acme.ID, "Acme", types.RoleSubject)},
	})
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, CreateInput{
		Text:     "Acme acquired by a competitor",
		ValidAt:  jan,
		Mentions: []*types.EntityMention{mention(acme.ID, "Acme", types.RoleObject)},
	})
	require.NoError(t, err)

	conflicts, err := svc.FindConflicts(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestResolveConflict(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	alice := newStoredEntity(t, s, "Alice")

	jan := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	winner, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice works at Acme",
		ValidAt:  jan,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)
	loser, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice works at Globex",
		ValidAt:  jan,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)

	err = svc.ResolveConflict(ctx, winner.ID, []string{loser.ID}, "HR system confirms Acme")
	require.NoError(t, err)

	resolved, err := s.GetFact(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuperseded, resolved.Status)
	require.NotNil(t, resolved.SupersededByID)
	assert.Equal(t, winner.ID, *resolved.SupersededByID)
	assert.Equal(t, "HR system confirms Acme", resolved.Metadata["resolution_reason"])

	kept, err := s.GetFact(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCanonical, kept.Status)

	// A settled conflict no longer surfaces.
	conflicts, err := svc.FindConflicts(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	err = svc.ResolveConflict(ctx, winner.ID, []string{winner.ID}, "self")
	assert.True(t, types.IsValidation(err))
}

func TestResolveConflictClosesLoserWindowAtWinnerValidAt(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	alice := newStoredEntity(t, s, "Alice")

	jan := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)

	earlier, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice is based in Berlin",
		ValidAt:  jan,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)
	winner, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice is based in Munich",
		ValidAt:  jun,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)
	sameInstant, _, err := svc.Create(ctx, CreateInput{
		Text:     "Alice is based in Hamburg",
		ValidAt:  jun,
		Mentions: []*types.EntityMention{mention(alice.ID, "Alice", types.RoleSubject)},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ResolveConflict(ctx, winner.ID, []string{earlier.ID, sameInstant.ID}, "registry lists Munich"))

	// A loser that began before the winner closes at the winner's valid_at.
	closed, err := s.GetFact(ctx, earlier.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.InvalidAt)
	assert.True(t, closed.InvalidAt.Equal(jun))

	// A loser with the same valid_at keeps an open window but still flips.
	open, err := s.GetFact(ctx, sameInstant.ID)
	require.NoError(t, err)
	assert.Nil(t, open.InvalidAt)
	assert.Equal(t, types.StatusSuperseded, open.Status)
}
