package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/store"
	"github.com/chronofact/chronofact/pkg/types"
)

func newTestResolver(t *testing.T) (*Resolver, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	r := New(s, config.ResolverConfig{
		FuzzyMatchThreshold: config.DefaultFuzzyMatchThreshold,
		AutoMergeThreshold:  config.DefaultAutoMergeThreshold,
	}, nil)
	return r, s
}

func TestResolveExactMatchIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	created, err := r.Create(ctx, "Microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)

	got, err := r.Resolve(ctx, "microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	got, err = r.Resolve(ctx, "  MICROSOFT  ", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestResolveViaAlias(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	created, err := r.Create(ctx, "Microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)
	require.NoError(t, r.AddAlias(ctx, created.ID, "MSFT", types.AliasKindAbbreviation))

	got, err := r.Resolve(ctx, "msft", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestResolveFuzzyTypo(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	created, err := r.Create(ctx, "Microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)

	// One dropped letter stays well above the 0.85 threshold.
	got, err := r.Resolve(ctx, "Microsft", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// An unrelated name does not.
	_, err = r.Resolve(ctx, "Peugeot", types.EntityTypeOrganization)
	assert.True(t, types.IsNotFound(err))
}

func TestResolveUnknownMention(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	_, err := r.Resolve(ctx, "Anyone", "")
	assert.True(t, types.IsNotFound(err))
}

func TestResolveOrCreate(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	first, created, err := r.ResolveOrCreate(ctx, "Acme Corp", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := r.ResolveOrCreate(ctx, "Acme Corp", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveOrCreateAutoMergeRecordsAlias(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	first, _, err := r.ResolveOrCreate(ctx, "International Business Machines Corporation", types.EntityTypeOrganization)
	require.NoError(t, err)

	// A near-identical surface form resolves to the existing entity and
	// leaves the variant behind as an alias.
	second, created, err := r.ResolveOrCreate(ctx, "International Business Machines Corporations", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	got, err := r.Canonical(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.HasAlias("International Business Machines Corporations"))
}

func TestAddAliasAdmissibility(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	msft, err := r.Create(ctx, "Microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)
	satya, err := r.Create(ctx, "Satya Nadella", types.EntityTypePerson)
	require.NoError(t, err)

	// Pronouns and generic article phrases drop silently.
	require.NoError(t, r.AddAlias(ctx, msft.ID, "it", types.AliasKindName))
	require.NoError(t, r.AddAlias(ctx, msft.ID, "the company", types.AliasKindName))
	// A bare common given name drops unless it leads the entity's own name.
	require.NoError(t, r.AddAlias(ctx, satya.ID, "John", types.AliasKindName))
	require.NoError(t, r.AddAlias(ctx, satya.ID, "Satya", types.AliasKindName))
	// Abbreviations and multi-token forms are admissible.
	require.NoError(t, r.AddAlias(ctx, msft.ID, "MSFT", types.AliasKindAbbreviation))
	require.NoError(t, r.AddAlias(ctx, msft.ID, "Microsoft Corporation", types.AliasKindName))

	gotMsft, err := r.Canonical(ctx, msft.ID)
	require.NoError(t, err)
	assert.False(t, gotMsft.HasAlias("it"))
	assert.False(t, gotMsft.HasAlias("the company"))
	assert.True(t, gotMsft.HasAlias("MSFT"))
	assert.True(t, gotMsft.HasAlias("Microsoft Corporation"))

	gotSatya, err := r.Canonical(ctx, satya.ID)
	require.NoError(t, err)
	assert.False(t, gotSatya.HasAlias("John"))
	assert.True(t, gotSatya.HasAlias("Satya"))
}

func TestMergeForwardsResolution(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	keep, err := r.Create(ctx, "Microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)
	merge, err := r.Create(ctx, "Microsoft Corporation", types.EntityTypeOrganization)
	require.NoError(t, err)
	require.NoError(t, r.AddAlias(ctx, merge.ID, "MSFT", types.AliasKindAbbreviation))

	survivor, err := r.Merge(ctx, keep.ID, merge.ID)
	require.NoError(t, err)
	assert.Equal(t, keep.ID, survivor.ID)
	assert.True(t, survivor.HasAlias("Microsoft Corporation"))
	assert.True(t, survivor.HasAlias("MSFT"))

	// Resolving the merged entity's name lands on the survivor.
	got, err := r.Resolve(ctx, "Microsoft Corporation", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, keep.ID, got.ID)

	// Canonical follows the tombstone's pointer.
	got, err = r.Canonical(ctx, merge.ID)
	require.NoError(t, err)
	assert.Equal(t, keep.ID, got.ID)
}

func TestMergeCycleRejected(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	a, err := r.Create(ctx, "Acme", types.EntityTypeOrganization)
	require.NoError(t, err)
	b, err := r.Create(ctx, "Acme Inc", types.EntityTypeOrganization)
	require.NoError(t, err)

	_, err = r.Merge(ctx, a.ID, b.ID)
	require.NoError(t, err)

	// The reverse merge would point the survivor at its own tombstone.
	_, err = r.Merge(ctx, b.ID, a.ID)
	assert.True(t, types.IsConflict(err))

	_, err = r.Merge(ctx, a.ID, a.ID)
	assert.True(t, types.IsConflict(err))
}

func TestCandidatesOrderedByScore(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	_, err := r.Create(ctx, "Microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)
	_, err = r.Create(ctx, "Microsort Labs", types.EntityTypeOrganization)
	require.NoError(t, err)

	matches, err := r.Candidates(ctx, "Microsoft", types.EntityTypeOrganization)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "exact", matches[0].Tier)
	assert.Equal(t, 1.0, matches[0].Score)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestExactNameBeatsOlderAlias(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	// The aliased entity exists first, so score ties must not fall back to
	// creation order.
	holdings, err := r.Create(ctx, "Acme Holdings Corp", types.EntityTypeOrganization)
	require.NoError(t, err)
	require.NoError(t, r.AddAlias(ctx, holdings.ID, "Acme", types.AliasKindAbbreviation))
	acme, err := r.Create(ctx, "Acme", types.EntityTypeOrganization)
	require.NoError(t, err)

	got, err := r.Resolve(ctx, "Acme", types.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, acme.ID, got.ID)

	matches, err := r.Candidates(ctx, "Acme", types.EntityTypeOrganization)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Tier)
	assert.Equal(t, acme.ID, matches[0].Entity.ID)
	assert.Equal(t, "alias", matches[1].Tier)
	assert.Equal(t, holdings.ID, matches[1].Entity.ID)
}
