package chronofact

import (
	"context"
	"fmt"
	"time"

	"github.com/chronofact/chronofact/pkg/facts"
	"github.com/chronofact/chronofact/pkg/pipeline"
	"github.com/chronofact/chronofact/pkg/types"
)

// IngestDrafts runs a batch of draft facts through the concurrent pipeline.
// Each draft's entities resolve through identity resolution before the fact
// is recorded; results come back in input order with per-item errors.
func (c *Client) IngestDrafts(ctx context.Context, drafts []types.DraftFact) []pipeline.Result {
	return c.pipeline.ProcessParallel(ctx, drafts, c.ingestDraft)
}

// IngestText extracts draft facts from source text and ingests them. The
// reference time anchors undated statements.
func (c *Client) IngestText(ctx context.Context, sourceID, text string, refTime time.Time) ([]pipeline.Result, error) {
	if c.extractor == nil {
		return nil, &types.ConfigurationError{Field: "extract", Reason: "no extractor configured"}
	}
	drafts, err := c.extractor.Extract(ctx, sourceID, text, refTime)
	if err != nil {
		return nil, fmt.Errorf("extract facts from %s: %w", sourceID, err)
	}
	c.logger.Info("extraction finished", "source_id", sourceID, "drafts", len(drafts))
	return c.IngestDrafts(ctx, drafts), nil
}

// ingestDraft is the pipeline operation for one draft: resolve or create
// every referenced entity, then record the fact with its mentions and
// source attribution.
func (c *Client) ingestDraft(ctx context.Context, draft types.DraftFact) (*types.Fact, bool, error) {
	var mentions []*types.EntityMention
	for _, draftEntity := range draft.Entities {
		entity, _, err := c.resolver.ResolveOrCreate(ctx, draftEntity.Name, draftEntity.Type)
		if err != nil {
			return nil, false, fmt.Errorf("resolve entity %q: %w", draftEntity.Name, err)
		}
		role := draftEntity.Role
		if role == "" {
			role = types.RoleSubject
		}
		mentions = append(mentions, &types.EntityMention{
			EntityID:   entity.ID,
			Text:       draftEntity.Name,
			Role:       role,
			Confidence: draft.Confidence,
		})
	}

	var sources []*types.FactSource
	if draft.SourceID != "" {
		sources = append(sources, &types.FactSource{
			SourceID:   draft.SourceID,
			Kind:       types.SourcePrimary,
			Excerpt:    draft.Excerpt,
			Confidence: draft.Confidence,
		})
	}

	return c.facts.Create(ctx, facts.CreateInput{
		Text:             draft.Text,
		ValidAt:          draft.ValidAt,
		InvalidAt:        draft.InvalidAt,
		Mentions:         mentions,
		Sources:          sources,
		Confidence:       draft.Confidence,
		ExtractionMethod: draft.Method,
	})
}
