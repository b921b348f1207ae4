package types

import "time"

// QuerySpec is an immutable description of a fact query: a struct of optional
// predicates consumed by one execution function rather than a mutable builder.
//
// Semantics: Statuses filters first (nil means canonical only). If At is set,
// facts must contain it (valid_at <= at and (invalid_at is null or
// invalid_at > at)). If From/To are set, the validity interval must overlap
// the range. EntityID joins through entity mentions; Topic is a text match
// delegated to the store's search capability.
type QuerySpec struct {
	Topic    string
	At       *time.Time
	EntityID string
	Statuses []FactStatus
	From     *time.Time
	To       *time.Time
	Limit    int
}

// EffectiveStatuses returns the status filter, defaulting to canonical.
func (q QuerySpec) EffectiveStatuses() []FactStatus {
	if len(q.Statuses) == 0 {
		return []FactStatus{StatusCanonical}
	}
	return q.Statuses
}

// MatchesStatus reports whether s passes the status filter.
func (q QuerySpec) MatchesStatus(s FactStatus) bool {
	for _, want := range q.EffectiveStatuses() {
		if s == want {
			return true
		}
	}
	return false
}

// MatchesInterval applies the temporal predicates to a fact.
func (q QuerySpec) MatchesInterval(f *Fact) bool {
	if q.At != nil && !f.ValidAtTime(*q.At) {
		return false
	}
	if q.From != nil && q.To != nil {
		return f.ValidBetween(*q.From, *q.To)
	}
	if q.From != nil {
		return f.InvalidAt == nil || f.InvalidAt.After(*q.From)
	}
	if q.To != nil {
		return !f.ValidAt.After(*q.To)
	}
	return true
}

// DiffResult partitions canonical facts between two snapshots, compared by
// normalized-text key rather than fact id, since supersession changes ids.
type DiffResult struct {
	Added     []*Fact `json:"added"`
	Removed   []*Fact `json:"removed"`
	Unchanged []*Fact `json:"unchanged"`
}

// Conflict is a candidate contradiction: two canonical facts sharing an
// entity and role whose validity windows overlap while their text diverges.
type Conflict struct {
	Fact1      *Fact   `json:"fact1"`
	Fact2      *Fact   `json:"fact2"`
	Similarity float64 `json:"similarity"`
}
