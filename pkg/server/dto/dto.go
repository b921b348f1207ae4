// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/chronofact/chronofact/pkg/types"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateEntityRequest registers a new entity.
type CreateEntityRequest struct {
	Name string           `json:"name" binding:"required"`
	Type types.EntityType `json:"type" binding:"required"`
}

// ResolveEntityRequest resolves a mention to a canonical entity.
type ResolveEntityRequest struct {
	Mention string           `json:"mention" binding:"required"`
	Type    types.EntityType `json:"type"`
}

// AddAliasRequest attaches an alias to an entity.
type AddAliasRequest struct {
	Alias string          `json:"alias" binding:"required"`
	Kind  types.AliasKind `json:"kind"`
}

// MergeEntitiesRequest folds merge_id into keep_id.
type MergeEntitiesRequest struct {
	KeepID  string `json:"keep_id" binding:"required"`
	MergeID string `json:"merge_id" binding:"required"`
}

// MentionInput is one entity mention on a new fact.
type MentionInput struct {
	EntityID   string            `json:"entity_id" binding:"required"`
	Text       string            `json:"text"`
	Role       types.MentionRole `json:"role"`
	Confidence float64           `json:"confidence"`
}

// RecordFactRequest stores a new fact.
type RecordFactRequest struct {
	Text       string         `json:"text" binding:"required"`
	ValidAt    time.Time      `json:"valid_at" binding:"required"`
	InvalidAt  *time.Time     `json:"invalid_at"`
	Mentions   []MentionInput `json:"mentions"`
	SourceID   string         `json:"source_id"`
	Excerpt    string         `json:"excerpt"`
	Confidence float64        `json:"confidence"`
}

// RecordFactResponse reports the stored fact and whether it already existed.
type RecordFactResponse struct {
	Fact    *types.Fact `json:"fact"`
	Created bool        `json:"created"`
}

// SupersedeRequest replaces a fact with a newer statement.
type SupersedeRequest struct {
	NewText string    `json:"new_text" binding:"required"`
	ValidAt time.Time `json:"valid_at" binding:"required"`
}

// CorroborateRequest records independent support for a fact.
type CorroborateRequest struct {
	CorroboratingID string `json:"corroborating_id" binding:"required"`
}

// SynthesizeRequest derives a new fact from source facts.
type SynthesizeRequest struct {
	Text           string    `json:"text" binding:"required"`
	ValidAt        time.Time `json:"valid_at" binding:"required"`
	DerivedFromIDs []string  `json:"derived_from_ids" binding:"required"`
}

// InvalidateRequest closes a fact's validity window.
type InvalidateRequest struct {
	At time.Time `json:"at" binding:"required"`
}

// ResolveConflictRequest settles a conflict in favor of keep_id.
type ResolveConflictRequest struct {
	KeepID       string   `json:"keep_id" binding:"required"`
	SupersedeIDs []string `json:"supersede_ids" binding:"required"`
	Reason       string   `json:"reason" binding:"required"`
}

// IngestTextRequest extracts and ingests facts from text.
type IngestTextRequest struct {
	SourceID string     `json:"source_id" binding:"required"`
	Text     string     `json:"text" binding:"required"`
	RefTime  *time.Time `json:"ref_time"`
}

// IngestDraftsRequest ingests pre-built draft facts.
type IngestDraftsRequest struct {
	Drafts []types.DraftFact `json:"drafts" binding:"required"`
}

// IngestResultItem is one pipeline outcome, with the error flattened for
// JSON.
type IngestResultItem struct {
	Index   int         `json:"index"`
	Fact    *types.Fact `json:"fact,omitempty"`
	Created bool        `json:"created"`
	Error   string      `json:"error,omitempty"`
}

// IngestResponse reports a whole batch.
type IngestResponse struct {
	Results []IngestResultItem `json:"results"`
	Total   int                `json:"total"`
	Failed  int                `json:"failed"`
}
