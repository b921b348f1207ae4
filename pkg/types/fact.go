package types

import (
	"time"
)

// FactStatus is the authority state of a fact.
//
// State machine: canonical is the initial state for extracted facts and
// synthesized for synthesis output. canonical may transition to corroborated
// when enough independent facts confirm it; canonical and corroborated may
// transition to superseded. superseded is terminal. Facts are never deleted.
type FactStatus string

const (
	StatusCanonical    FactStatus = "canonical"
	StatusSuperseded   FactStatus = "superseded"
	StatusCorroborated FactStatus = "corroborated"
	StatusSynthesized  FactStatus = "synthesized"
)

// CanTransition reports whether the status machine permits moving from s to next.
func (s FactStatus) CanTransition(next FactStatus) bool {
	switch s {
	case StatusCanonical:
		return next == StatusCorroborated || next == StatusSuperseded
	case StatusCorroborated:
		return next == StatusSuperseded
	default:
		// superseded and synthesized are terminal
		return false
	}
}

// Fact is a single assertion with an "event clock" validity interval.
// ValidAt is when the assertion became true; a nil InvalidAt means it is
// still true. Digest is derived from the normalized text and, together with
// ValidAt, uniquely identifies the assertion at that point in time.
type Fact struct {
	ID                string                 `json:"id"`
	Text              string                 `json:"text"`
	Digest            string                 `json:"content_digest"`
	ValidAt           time.Time              `json:"valid_at"`
	InvalidAt         *time.Time             `json:"invalid_at,omitempty"`
	Status            FactStatus             `json:"status"`
	SupersededByID    *string                `json:"superseded_by_id,omitempty"`
	DerivedFromIDs    []string               `json:"derived_from_ids,omitempty"`
	CorroboratedByIDs []string               `json:"corroborated_by_ids,omitempty"`
	Confidence        float64                `json:"confidence"`
	ExtractionMethod  string                 `json:"extraction_method,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// ValidAtTime reports whether the fact was true at t:
// valid_at <= t and (invalid_at is null or invalid_at > t).
func (f *Fact) ValidAtTime(t time.Time) bool {
	if f.ValidAt.After(t) {
		return false
	}
	return f.InvalidAt == nil || f.InvalidAt.After(t)
}

// CurrentlyValid reports whether the fact has no invalidation point.
func (f *Fact) CurrentlyValid() bool {
	return f.InvalidAt == nil
}

// ValidBetween reports whether the validity interval overlaps [from, to]:
// valid_at <= to and (invalid_at is null or invalid_at > from).
func (f *Fact) ValidBetween(from, to time.Time) bool {
	if f.ValidAt.After(to) {
		return false
	}
	return f.InvalidAt == nil || f.InvalidAt.After(from)
}

// BecameValidBetween reports whether valid_at falls inside [from, to].
func (f *Fact) BecameValidBetween(from, to time.Time) bool {
	return !f.ValidAt.Before(from) && !f.ValidAt.After(to)
}

// BecameInvalidBetween reports whether invalid_at falls inside [from, to].
func (f *Fact) BecameInvalidBetween(from, to time.Time) bool {
	if f.InvalidAt == nil {
		return false
	}
	return !f.InvalidAt.Before(from) && !f.InvalidAt.After(to)
}

// CorroboratedBy reports whether id is already in the corroborating set.
func (f *Fact) CorroboratedBy(id string) bool {
	for _, existing := range f.CorroboratedByIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// ValidateInterval enforces the interval invariant invalid_at > valid_at.
func (f *Fact) ValidateInterval() error {
	if f.InvalidAt != nil && !f.InvalidAt.After(f.ValidAt) {
		return &ValidationError{
			Field:  "invalid_at",
			Reason: "invalid_at must be strictly after valid_at",
		}
	}
	return nil
}
