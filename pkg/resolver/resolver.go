// Package resolver maps entity mentions to canonical entity records.
//
// Resolution runs in tiers: exact name match, alias match, then fuzzy
// matching over names and aliases. Merged entities are never returned
// directly; lookups follow the canonical pointer to the surviving record.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/store"
	"github.com/chronofact/chronofact/pkg/types"
	"github.com/chronofact/chronofact/pkg/utils"
)

// Resolver performs tiered entity identity resolution backed by a Store.
type Resolver struct {
	store  store.Store
	cfg    config.ResolverConfig
	logger *slog.Logger
}

// New creates a Resolver. A nil logger falls back to slog.Default.
func New(s store.Store, cfg config.ResolverConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FuzzyMatchThreshold == 0 {
		cfg.FuzzyMatchThreshold = config.DefaultFuzzyMatchThreshold
	}
	if cfg.AutoMergeThreshold == 0 {
		cfg.AutoMergeThreshold = config.DefaultAutoMergeThreshold
	}
	return &Resolver{store: s, cfg: cfg, logger: logger}
}

// Match is a resolution candidate with its similarity score.
type Match struct {
	Entity *types.Entity `json:"entity"`
	Score  float64       `json:"score"`
	// Tier records how the match was found: "exact", "alias" or "fuzzy".
	Tier string `json:"tier"`
}

// Resolve finds the canonical entity for a mention, or returns a
// NotFoundError when no candidate clears the fuzzy threshold. An empty
// entityType matches entities of any type.
func (r *Resolver) Resolve(ctx context.Context, mention string, entityType types.EntityType) (*types.Entity, error) {
	match, err := r.bestMatch(ctx, mention, entityType)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, &types.NotFoundError{Kind: "entity", ID: mention}
	}
	return r.Canonical(ctx, match.Entity.ID)
}

// Candidates returns every match for a mention at or above the fuzzy
// threshold, best first. Useful for review tooling.
func (r *Resolver) Candidates(ctx context.Context, mention string, entityType types.EntityType) ([]Match, error) {
	entities, err := r.store.ListEntities(ctx, entityType, false)
	if err != nil {
		return nil, fmt.Errorf("list entities for resolution: %w", err)
	}

	var matches []Match
	for _, entity := range entities {
		if m := r.score(mention, entity); m != nil {
			matches = append(matches, *m)
		}
	}
	// An exact canonical-name hit outranks an alias hit even though both
	// score 1.0, so order by tier before score.
	sort.SliceStable(matches, func(i, j int) bool {
		if ri, rj := tierRank(matches[i].Tier), tierRank(matches[j].Tier); ri != rj {
			return ri < rj
		}
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

func tierRank(tier string) int {
	switch tier {
	case "exact":
		return 0
	case "alias":
		return 1
	default:
		return 2
	}
}

func (r *Resolver) bestMatch(ctx context.Context, mention string, entityType types.EntityType) (*Match, error) {
	matches, err := r.Candidates(ctx, mention, entityType)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// score evaluates one entity against a mention, exact tiers first so a
// perfect score carries the cheapest tier label.
func (r *Resolver) score(mention string, entity *types.Entity) *Match {
	normalized := utils.NormalizeText(mention)
	if utils.NormalizeText(entity.Name) == normalized {
		return &Match{Entity: entity, Score: 1.0, Tier: "exact"}
	}
	if entity.HasAlias(mention) {
		return &Match{Entity: entity, Score: 1.0, Tier: "alias"}
	}

	// Trigram overlap is a cheap screen before the edit-distance pass.
	mentionShingles := utils.Shingles(mention)
	best := 0.0
	names := append([]string{entity.Name}, aliasTexts(entity)...)
	for _, name := range names {
		if utils.JaccardSimilarity(mentionShingles, utils.Shingles(name)) < 0.2 {
			continue
		}
		if s := utils.Similarity(mention, name); s > best {
			best = s
		}
	}
	if best >= r.cfg.FuzzyMatchThreshold {
		return &Match{Entity: entity, Score: best, Tier: "fuzzy"}
	}
	return nil
}

func aliasTexts(entity *types.Entity) []string {
	texts := make([]string, 0, len(entity.Aliases))
	for _, alias := range entity.Aliases {
		texts = append(texts, alias.Text)
	}
	return texts
}

// Create registers a new entity without attempting resolution.
func (r *Resolver) Create(ctx context.Context, name string, entityType types.EntityType) (*types.Entity, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &types.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	now := time.Now().UTC()
	entity := &types.Entity{
		ID:               uuid.New().String(),
		Name:             strings.TrimSpace(name),
		Type:             entityType,
		ResolutionStatus: types.ResolutionResolved,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.store.CreateEntity(ctx, entity); err != nil {
		return nil, fmt.Errorf("create entity %q: %w", name, err)
	}
	r.logger.Debug("entity created", "entity_id", entity.ID, "name", entity.Name, "type", entityType)
	return entity, nil
}

// ResolveOrCreate resolves a mention, creating a fresh entity when nothing
// matches. A fuzzy match at or above the auto-merge threshold records the
// mention as an alias of the matched entity.
func (r *Resolver) ResolveOrCreate(ctx context.Context, mention string, entityType types.EntityType) (*types.Entity, bool, error) {
	match, err := r.bestMatch(ctx, mention, entityType)
	if err != nil {
		return nil, false, err
	}
	if match != nil {
		entity, err := r.Canonical(ctx, match.Entity.ID)
		if err != nil {
			return nil, false, err
		}
		if match.Tier == "fuzzy" && match.Score >= r.cfg.AutoMergeThreshold {
			if err := r.AddAlias(ctx, entity.ID, mention, types.AliasKindName); err != nil {
				return nil, false, err
			}
		}
		return entity, false, nil
	}

	entity, err := r.Create(ctx, mention, entityType)
	if err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

// AddAlias attaches an alias to an entity. Inadmissible aliases, such as
// pronouns or bare given names, are dropped without error so extraction
// pipelines can feed every surface form through without pre-filtering.
func (r *Resolver) AddAlias(ctx context.Context, entityID, alias string, kind types.AliasKind) error {
	entity, err := r.store.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	if !admissibleAlias(alias, entity.Name) {
		r.logger.Debug("alias rejected", "entity_id", entityID, "alias", alias)
		return nil
	}
	return r.store.AddAlias(ctx, entityID, types.Alias{
		Text:       strings.TrimSpace(alias),
		Kind:       kind,
		Confidence: 1.0,
	})
}

// Merge folds mergeID into keepID. The merged entity becomes a tombstone
// whose canonical pointer names the survivor; its name and aliases carry
// over as aliases of the survivor. Merging in a way that would create a
// pointer cycle is a conflict.
func (r *Resolver) Merge(ctx context.Context, keepID, mergeID string) (*types.Entity, error) {
	if keepID == mergeID {
		return nil, &types.ConflictError{Op: "merge", Reason: "cannot merge an entity into itself"}
	}
	keep, err := r.store.GetEntity(ctx, keepID)
	if err != nil {
		return nil, err
	}
	merge, err := r.store.GetEntity(ctx, mergeID)
	if err != nil {
		return nil, err
	}

	// Walk the survivor's canonical chain; reaching mergeID means the
	// requested merge would close a cycle.
	seen := map[string]bool{}
	current := keep
	for current.CanonicalID != nil {
		if seen[current.ID] {
			return nil, fmt.Errorf("canonical pointer cycle detected at entity %s", current.ID)
		}
		seen[current.ID] = true
		next, err := r.store.GetEntity(ctx, *current.CanonicalID)
		if err != nil {
			return nil, err
		}
		if next.ID == mergeID {
			return nil, &types.ConflictError{Op: "merge", Reason: "merge would create a canonical pointer cycle"}
		}
		current = next
	}

	if err := r.store.MergeEntities(ctx, keepID, mergeID); err != nil {
		return nil, err
	}

	if err := r.AddAlias(ctx, keepID, merge.Name, types.AliasKindFormer); err != nil {
		return nil, err
	}
	for _, alias := range merge.Aliases {
		if err := r.AddAlias(ctx, keepID, alias.Text, alias.Kind); err != nil {
			return nil, err
		}
	}

	r.logger.Info("entities merged", "keep_id", keepID, "merge_id", mergeID)
	return r.store.GetEntity(ctx, keepID)
}

// Canonical follows a possibly-merged entity to its surviving record.
// A broken or cyclic pointer chain is reported as an error rather than
// silently returning a tombstone.
func (r *Resolver) Canonical(ctx context.Context, entityID string) (*types.Entity, error) {
	seen := map[string]bool{}
	current, err := r.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	for current.Merged() {
		if current.CanonicalID == nil {
			return nil, fmt.Errorf("merged entity %s has no canonical pointer", current.ID)
		}
		if seen[current.ID] {
			return nil, fmt.Errorf("canonical pointer cycle detected at entity %s", current.ID)
		}
		seen[current.ID] = true
		current, err = r.store.GetEntity(ctx, *current.CanonicalID)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}
