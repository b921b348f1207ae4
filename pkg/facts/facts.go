// Package facts implements the fact lifecycle: creation, supersession,
// corroboration, synthesis, invalidation and conflict handling.
//
// Facts are never deleted. Every operation that retires a fact leaves it in
// place with a terminal status and a pointer to what replaced it, so the
// store remains a faithful history of what was believed when.
package facts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/store"
	"github.com/chronofact/chronofact/pkg/types"
	"github.com/chronofact/chronofact/pkg/utils"
)

// Service coordinates fact lifecycle operations over a Store.
type Service struct {
	store  store.Store
	cfg    config.FactsConfig
	logger *slog.Logger
}

// NewService creates a fact Service. A nil logger falls back to slog.Default.
func NewService(s store.Store, cfg config.FactsConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CorroborationThreshold == 0 {
		cfg.CorroborationThreshold = config.DefaultCorroborationThreshold
	}
	if cfg.ConflictSimilarityThreshold == 0 {
		cfg.ConflictSimilarityThreshold = config.DefaultConflictSimilarityThreshold
	}
	return &Service{store: s, cfg: cfg, logger: logger}
}

// CreateInput describes a new fact to record.
type CreateInput struct {
	Text             string
	ValidAt          time.Time
	InvalidAt        *time.Time
	Mentions         []*types.EntityMention
	Sources          []*types.FactSource
	Confidence       float64
	ExtractionMethod string
}

// Create records a fact. Creation is idempotent on the normalized text and
// valid_at instant: recording the same statement twice returns the existing
// fact and reports created=false.
func (s *Service) Create(ctx context.Context, in CreateInput) (*types.Fact, bool, error) {
	if in.Text == "" {
		return nil, false, &types.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if in.ValidAt.IsZero() {
		return nil, false, &types.ValidationError{Field: "valid_at", Reason: "must be set"}
	}
	confidence := in.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	fact := &types.Fact{
		ID:               uuid.New().String(),
		Text:             in.Text,
		Digest:           utils.ContentDigest(in.Text),
		ValidAt:          in.ValidAt.UTC(),
		InvalidAt:        in.InvalidAt,
		Status:           types.StatusCanonical,
		Confidence:       confidence,
		ExtractionMethod: in.ExtractionMethod,
		CreatedAt:        time.Now().UTC(),
	}
	if err := fact.ValidateInterval(); err != nil {
		return nil, false, err
	}

	for _, m := range in.Mentions {
		m.FactID = fact.ID
	}
	for _, src := range in.Sources {
		src.FactID = fact.ID
	}

	created, isNew, err := s.store.CreateFact(ctx, fact, in.Mentions, in.Sources)
	if err != nil {
		return nil, false, fmt.Errorf("create fact: %w", err)
	}
	if isNew {
		s.logger.Debug("fact created", "fact_id", created.ID, "valid_at", created.ValidAt)
	}
	return created, isNew, nil
}

// Supersede replaces an old fact with a newer statement. The old fact keeps
// its record but becomes superseded: its window closes at the new fact's
// valid_at and its superseded_by pointer names the replacement. The new fact
// inherits the old fact's entity mentions.
func (s *Service) Supersede(ctx context.Context, oldID, newText string, validAt time.Time) (*types.Fact, error) {
	old, err := s.store.GetFact(ctx, oldID)
	if err != nil {
		return nil, err
	}
	// The replacement must be strictly later; at an equal instant the old
	// fact's window would close the moment it opened.
	if !validAt.After(old.ValidAt) {
		return nil, &types.ValidationError{
			Field:  "valid_at",
			Reason: "superseding fact must become valid after the fact it replaces",
		}
	}
	if newText == "" {
		return nil, &types.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	oldMentions, err := s.store.MentionsForFact(ctx, oldID)
	if err != nil {
		return nil, fmt.Errorf("load mentions of %s: %w", oldID, err)
	}

	replacement := &types.Fact{
		ID:               uuid.New().String(),
		Text:             newText,
		Digest:           utils.ContentDigest(newText),
		ValidAt:          validAt.UTC(),
		Status:           types.StatusCanonical,
		Confidence:       old.Confidence,
		ExtractionMethod: old.ExtractionMethod,
		CreatedAt:        time.Now().UTC(),
	}
	mentions := make([]*types.EntityMention, 0, len(oldMentions))
	for _, m := range oldMentions {
		mentions = append(mentions, &types.EntityMention{
			FactID:     replacement.ID,
			EntityID:   m.EntityID,
			Text:       m.Text,
			Role:       m.Role,
			Confidence: m.Confidence,
		})
	}

	created, err := s.store.MarkSuperseded(ctx, oldID, replacement, mentions)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fact superseded", "old_id", oldID, "new_id", created.ID)
	return created, nil
}

// Corroborate records that another fact independently supports factID. The
// operation is idempotent per corroborating fact. Once the number of distinct
// corroborating facts reaches the configured threshold the fact moves from
// canonical to corroborated; the transition is one-way and later
// corroborations only extend the evidence list.
func (s *Service) Corroborate(ctx context.Context, factID, corroboratingID string) (*types.Fact, error) {
	if factID == corroboratingID {
		return nil, &types.ValidationError{Field: "corroborating_id", Reason: "a fact cannot corroborate itself"}
	}
	fact, err := s.store.GetFact(ctx, factID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetFact(ctx, corroboratingID); err != nil {
		return nil, err
	}

	if fact.CorroboratedBy(corroboratingID) {
		return fact, nil
	}
	corroborated := append(append([]string{}, fact.CorroboratedByIDs...), corroboratingID)

	status := fact.Status
	if status == types.StatusCanonical && len(corroborated) >= s.cfg.CorroborationThreshold {
		status = types.StatusCorroborated
	}
	if err := s.store.SetCorroboration(ctx, factID, corroborated, status); err != nil {
		return nil, err
	}
	s.logger.Debug("fact corroborated",
		"fact_id", factID, "by", corroboratingID, "count", len(corroborated))
	return s.store.GetFact(ctx, factID)
}

// Synthesize derives a new fact from several source facts, such as a summary
// statement built from a set of observations. The output carries the
// synthesized status and inherits the union of its sources' entity mentions.
// Source facts are left untouched.
func (s *Service) Synthesize(ctx context.Context, text string, validAt time.Time, derivedFromIDs []string) (*types.Fact, error) {
	if text == "" {
		return nil, &types.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if len(derivedFromIDs) < 2 {
		return nil, &types.ValidationError{Field: "derived_from_ids", Reason: "synthesis requires at least two source facts"}
	}

	seen := map[string]bool{}
	var mentions []*types.EntityMention
	confidence := 1.0
	for _, id := range derivedFromIDs {
		src, err := s.store.GetFact(ctx, id)
		if err != nil {
			return nil, err
		}
		if src.Confidence < confidence {
			confidence = src.Confidence
		}
		srcMentions, err := s.store.MentionsForFact(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load mentions of %s: %w", id, err)
		}
		for _, m := range srcMentions {
			key := m.EntityID + "\x00" + utils.NormalizeText(m.Text)
			if seen[key] {
				continue
			}
			seen[key] = true
			mentions = append(mentions, &types.EntityMention{
				EntityID:   m.EntityID,
				Text:       m.Text,
				Role:       m.Role,
				Confidence: m.Confidence,
			})
		}
	}

	fact := &types.Fact{
		ID:             uuid.New().String(),
		Text:           text,
		Digest:         utils.ContentDigest(text),
		ValidAt:        validAt.UTC(),
		Status:         types.StatusSynthesized,
		DerivedFromIDs: derivedFromIDs,
		Confidence:     confidence,
		CreatedAt:      time.Now().UTC(),
	}
	for _, m := range mentions {
		m.FactID = fact.ID
	}

	created, isNew, err := s.store.CreateFact(ctx, fact, mentions, nil)
	if err != nil {
		return nil, fmt.Errorf("create synthesized fact: %w", err)
	}
	if isNew {
		s.logger.Info("fact synthesized", "fact_id", created.ID, "sources", len(derivedFromIDs))
	}
	return created, nil
}

// Invalidate closes a fact's validity window at the given instant without
// replacing it, for statements that simply stopped being true. The instant
// must fall strictly after the fact became valid.
func (s *Service) Invalidate(ctx context.Context, factID string, at time.Time) (*types.Fact, error) {
	fact, err := s.store.GetFact(ctx, factID)
	if err != nil {
		return nil, err
	}
	if !at.After(fact.ValidAt) {
		return nil, &types.ValidationError{
			Field:  "invalid_at",
			Reason: "must be after the fact's valid_at",
		}
	}
	if err := s.store.SetInvalidAt(ctx, factID, at.UTC()); err != nil {
		return nil, err
	}
	s.logger.Info("fact invalidated", "fact_id", factID, "invalid_at", at)
	return s.store.GetFact(ctx, factID)
}
