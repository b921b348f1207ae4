package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chronofact/chronofact/pkg/types"
	"github.com/chronofact/chronofact/pkg/utils"
)

// MemoryStore is an in-memory implementation of Store, used for tests and
// for embedding the engine without an external database. Semantics mirror
// the SQL backends, including idempotent creation and atomic transitions.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*types.Entity
	facts    map[string]*types.Fact
	mentions map[string][]*types.EntityMention // fact id -> mentions
	sources  map[string][]*types.FactSource    // fact id -> provenance
	byDigest map[digestKey]string              // (digest, valid_at) -> fact id
}

type digestKey struct {
	digest  string
	validAt int64 // unix nanos, UTC
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]*types.Entity),
		facts:    make(map[string]*types.Fact),
		mentions: make(map[string][]*types.EntityMention),
		sources:  make(map[string][]*types.FactSource),
		byDigest: make(map[digestKey]string),
	}
}

// Initialize is a no-op for the memory store.
func (s *MemoryStore) Initialize(ctx context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func factKey(f *types.Fact) digestKey {
	return digestKey{digest: f.Digest, validAt: f.ValidAt.UTC().UnixNano()}
}

func copyEntity(e *types.Entity) *types.Entity {
	out := *e
	out.Aliases = append([]types.Alias(nil), e.Aliases...)
	if e.CanonicalID != nil {
		id := *e.CanonicalID
		out.CanonicalID = &id
	}
	if e.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func copyFact(f *types.Fact) *types.Fact {
	out := *f
	out.DerivedFromIDs = append([]string(nil), f.DerivedFromIDs...)
	out.CorroboratedByIDs = append([]string(nil), f.CorroboratedByIDs...)
	if f.InvalidAt != nil {
		t := *f.InvalidAt
		out.InvalidAt = &t
	}
	if f.SupersededByID != nil {
		id := *f.SupersededByID
		out.SupersededByID = &id
	}
	if f.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(f.Metadata))
		for k, v := range f.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func (s *MemoryStore) CreateEntity(ctx context.Context, entity *types.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[entity.ID]; exists {
		return &types.ConflictError{Op: "create entity", Reason: "id already exists"}
	}
	s.entities[entity.ID] = copyEntity(entity)
	return nil
}

func (s *MemoryStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "entity", ID: id}
	}
	return copyEntity(entity), nil
}

func (s *MemoryStore) ListEntities(ctx context.Context, entityType types.EntityType, includeMerged bool) ([]*types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Entity
	for _, entity := range s.entities {
		if entityType != "" && entity.Type != entityType {
			continue
		}
		if !includeMerged && entity.Merged() {
			continue
		}
		out = append(out, copyEntity(entity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AddAlias(ctx context.Context, entityID string, alias types.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityID]
	if !ok {
		return &types.NotFoundError{Kind: "entity", ID: entityID}
	}
	for _, existing := range entity.Aliases {
		if strings.EqualFold(existing.Text, alias.Text) {
			return nil
		}
	}
	entity.Aliases = append(entity.Aliases, alias)
	entity.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) MergeEntities(ctx context.Context, keepID, mergeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[keepID]; !ok {
		return &types.NotFoundError{Kind: "entity", ID: keepID}
	}
	merged, ok := s.entities[mergeID]
	if !ok {
		return &types.NotFoundError{Kind: "entity", ID: mergeID}
	}
	if merged.Merged() {
		return &types.ConflictError{Op: "merge", Reason: "entity " + mergeID + " is already merged"}
	}

	merged.ResolutionStatus = types.ResolutionMerged
	canonical := keepID
	merged.CanonicalID = &canonical
	merged.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateEntityStatus(ctx context.Context, entityID string, status types.ResolutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityID]
	if !ok {
		return &types.NotFoundError{Kind: "entity", ID: entityID}
	}
	entity.ResolutionStatus = status
	entity.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CreateFact(ctx context.Context, fact *types.Fact, mentions []*types.EntityMention, sources []*types.FactSource) (*types.Fact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byDigest[factKey(fact)]; ok {
		return copyFact(s.facts[existingID]), false, nil
	}

	stored := copyFact(fact)
	s.facts[stored.ID] = stored
	s.byDigest[factKey(stored)] = stored.ID
	s.storeMentions(stored.ID, mentions)
	for _, src := range sources {
		link := *src
		link.FactID = stored.ID
		s.sources[stored.ID] = append(s.sources[stored.ID], &link)
	}
	return copyFact(stored), true, nil
}

func (s *MemoryStore) storeMentions(factID string, mentions []*types.EntityMention) {
	for _, m := range mentions {
		duplicate := false
		for _, existing := range s.mentions[factID] {
			if existing.EntityID == m.EntityID && strings.EqualFold(existing.Text, m.Text) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		mention := *m
		mention.FactID = factID
		s.mentions[factID] = append(s.mentions[factID], &mention)
	}
}

func (s *MemoryStore) GetFact(ctx context.Context, id string) (*types.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fact, ok := s.facts[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "fact", ID: id}
	}
	return copyFact(fact), nil
}

func (s *MemoryStore) ListFacts(ctx context.Context, spec types.QuerySpec) ([]*types.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topic := utils.NormalizeText(spec.Topic)
	var out []*types.Fact
	for _, fact := range s.facts {
		if !spec.MatchesStatus(fact.Status) {
			continue
		}
		if !spec.MatchesInterval(fact) {
			continue
		}
		if spec.EntityID != "" && !s.mentionsEntity(fact.ID, spec.EntityID) {
			continue
		}
		if topic != "" && !strings.Contains(utils.NormalizeText(fact.Text), topic) {
			continue
		}
		out = append(out, copyFact(fact))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ValidAt.Equal(out[j].ValidAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ValidAt.Before(out[j].ValidAt)
	})
	if spec.Limit > 0 && len(out) > spec.Limit {
		out = out[:spec.Limit]
	}
	return out, nil
}

func (s *MemoryStore) mentionsEntity(factID, entityID string) bool {
	for _, m := range s.mentions[factID] {
		if m.EntityID == entityID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) MentionsForFact(ctx context.Context, factID string) ([]*types.EntityMention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.facts[factID]; !ok {
		return nil, &types.NotFoundError{Kind: "fact", ID: factID}
	}
	out := make([]*types.EntityMention, 0, len(s.mentions[factID]))
	for _, m := range s.mentions[factID] {
		mention := *m
		out = append(out, &mention)
	}
	return out, nil
}

func (s *MemoryStore) SourcesForFact(ctx context.Context, factID string) ([]*types.FactSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.facts[factID]; !ok {
		return nil, &types.NotFoundError{Kind: "fact", ID: factID}
	}
	out := make([]*types.FactSource, 0, len(s.sources[factID]))
	for _, src := range s.sources[factID] {
		link := *src
		out = append(out, &link)
	}
	return out, nil
}

func (s *MemoryStore) MarkSuperseded(ctx context.Context, oldID string, newFact *types.Fact, mentions []*types.EntityMention) (*types.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.facts[oldID]
	if !ok {
		return nil, &types.NotFoundError{Kind: "fact", ID: oldID}
	}
	if old.Status == types.StatusSuperseded {
		return nil, &types.ConflictError{Op: "supersede", Reason: "fact " + oldID + " is already superseded"}
	}
	if existingID, ok := s.byDigest[factKey(newFact)]; ok && existingID != oldID {
		return nil, &types.ConflictError{Op: "supersede", Reason: "superseding fact already exists"}
	}

	stored := copyFact(newFact)
	s.facts[stored.ID] = stored
	s.byDigest[factKey(stored)] = stored.ID
	s.storeMentions(stored.ID, mentions)

	invalidAt := stored.ValidAt
	old.Status = types.StatusSuperseded
	old.InvalidAt = &invalidAt
	newID := stored.ID
	old.SupersededByID = &newID
	return copyFact(stored), nil
}

func (s *MemoryStore) MarkSupersededBy(ctx context.Context, factIDs []string, keepID string, invalidAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before mutating anything so a failure cannot
	// leave a partial transition behind.
	for _, id := range factIDs {
		fact, ok := s.facts[id]
		if !ok {
			return &types.NotFoundError{Kind: "fact", ID: id}
		}
		if fact.Status == types.StatusSuperseded {
			return &types.ConflictError{Op: "resolve conflict", Reason: "fact " + id + " is already superseded"}
		}
	}

	for _, id := range factIDs {
		fact := s.facts[id]
		fact.Status = types.StatusSuperseded
		keep := keepID
		fact.SupersededByID = &keep
		// Closing the window must keep invalid_at strictly after valid_at;
		// a loser that began at or after the winner only changes status.
		if invalidAt.After(fact.ValidAt) {
			at := invalidAt
			fact.InvalidAt = &at
		}
		if fact.Metadata == nil {
			fact.Metadata = make(map[string]interface{})
		}
		fact.Metadata["resolution_reason"] = reason
	}
	return nil
}

func (s *MemoryStore) SetCorroboration(ctx context.Context, factID string, corroboratedBy []string, status types.FactStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fact, ok := s.facts[factID]
	if !ok {
		return &types.NotFoundError{Kind: "fact", ID: factID}
	}
	fact.CorroboratedByIDs = append([]string(nil), corroboratedBy...)
	if fact.Status != types.StatusSuperseded {
		fact.Status = status
	}
	return nil
}

func (s *MemoryStore) SetInvalidAt(ctx context.Context, factID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fact, ok := s.facts[factID]
	if !ok {
		return &types.NotFoundError{Kind: "fact", ID: factID}
	}
	t := at
	fact.InvalidAt = &t
	return nil
}
