package types

import "time"

// DraftEntity is an entity mention inside a draft fact, as produced by an
// extractor collaborator. Name is resolved through the entity resolver before
// the mention is persisted.
type DraftEntity struct {
	Name string      `json:"name"`
	Type EntityType  `json:"type,omitempty"`
	Role MentionRole `json:"role"`
}

// DraftFact is the extractor collaborator payload: the contract between the
// manual/LLM/rule-based extractors and the engine's fact-creation path.
type DraftFact struct {
	Text       string        `json:"text"`
	ValidAt    time.Time     `json:"valid_at"`
	InvalidAt  *time.Time    `json:"invalid_at,omitempty"`
	Entities   []DraftEntity `json:"entities,omitempty"`
	Confidence float64       `json:"confidence"`
	SourceID   string        `json:"source_id,omitempty"`
	Excerpt    string        `json:"excerpt,omitempty"`
	Method     string        `json:"extraction_method,omitempty"`
}

// Validate checks the draft before it reaches fact creation.
func (d *DraftFact) Validate() error {
	if d.Text == "" {
		return &ValidationError{Field: "text", Reason: "draft fact text cannot be empty"}
	}
	if d.ValidAt.IsZero() {
		return &ValidationError{Field: "valid_at", Reason: "draft fact requires valid_at"}
	}
	if d.InvalidAt != nil && !d.InvalidAt.After(d.ValidAt) {
		return &ValidationError{Field: "invalid_at", Reason: "invalid_at must be strictly after valid_at"}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "confidence must be within [0,1]"}
	}
	return nil
}
