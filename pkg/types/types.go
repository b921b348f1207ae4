package types

import (
	"strings"
	"time"
)

// EntityType classifies the real-world kind of an entity.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypePlace        EntityType = "place"
	EntityTypeProduct      EntityType = "product"
	EntityTypeEvent        EntityType = "event"
	EntityTypeConcept      EntityType = "concept"
)

// Valid reports whether t is one of the known entity types. An empty type is
// accepted as "unspecified" in resolve calls but not on created entities.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypePerson, EntityTypeOrganization, EntityTypePlace,
		EntityTypeProduct, EntityTypeEvent, EntityTypeConcept:
		return true
	}
	return false
}

// ResolutionStatus tracks where an entity sits in the identity lifecycle.
type ResolutionStatus string

const (
	ResolutionUnresolved ResolutionStatus = "unresolved"
	ResolutionResolved   ResolutionStatus = "resolved"
	ResolutionMerged     ResolutionStatus = "merged"
	ResolutionSplit      ResolutionStatus = "split"
)

// AliasKind tags where an alias came from.
type AliasKind string

const (
	AliasKindName         AliasKind = "name"
	AliasKindAbbreviation AliasKind = "abbreviation"
	AliasKindNickname     AliasKind = "nickname"
	AliasKindFormer       AliasKind = "former_name"
)

// Alias is an alternative surface form for an entity.
type Alias struct {
	Text       string    `json:"text"`
	Kind       AliasKind `json:"kind,omitempty"`
	Confidence float64   `json:"confidence"`
}

// Entity is a resolved real-world identity. Merged entities remain as
// tombstones whose CanonicalID points at the surviving entity; the forwarding
// pointers form a forest and every chain terminates at a non-merged entity.
type Entity struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Type             EntityType             `json:"type"`
	ResolutionStatus ResolutionStatus       `json:"resolution_status"`
	CanonicalID      *string                `json:"canonical_id,omitempty"`
	Aliases          []Alias                `json:"aliases,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Merged reports whether the entity is a tombstone.
func (e *Entity) Merged() bool {
	return e.ResolutionStatus == ResolutionMerged
}

// HasAlias reports whether the entity carries the alias text, case-insensitively.
func (e *Entity) HasAlias(text string) bool {
	for _, a := range e.Aliases {
		if strings.EqualFold(a.Text, text) {
			return true
		}
	}
	return false
}

// MentionRole describes the role an entity plays in a fact.
type MentionRole string

const (
	RoleSubject     MentionRole = "subject"
	RoleObject      MentionRole = "object"
	RoleLocation    MentionRole = "location"
	RoleTemporal    MentionRole = "temporal"
	RoleInstrument  MentionRole = "instrument"
	RoleBeneficiary MentionRole = "beneficiary"
)

// EntityMention links a fact to an entity under a literal surface form.
// (FactID, EntityID, Text) is unique: the same entity may appear twice in one
// fact only under distinct surface text.
type EntityMention struct {
	FactID     string      `json:"fact_id"`
	EntityID   string      `json:"entity_id"`
	Text       string      `json:"mention_text"`
	Role       MentionRole `json:"mention_role"`
	Confidence float64     `json:"confidence"`
}

// SourceKind tags the strength of a provenance link.
type SourceKind string

const (
	SourcePrimary       SourceKind = "primary"
	SourceSupporting    SourceKind = "supporting"
	SourceCorroborating SourceKind = "corroborating"
)

// FactSource is a provenance link back to an ingested source record. The
// engine attaches and reads these links; source content itself is owned by
// the ingestion collaborator.
type FactSource struct {
	FactID     string     `json:"fact_id"`
	SourceID   string     `json:"source_id"`
	Kind       SourceKind `json:"kind"`
	Excerpt    string     `json:"excerpt,omitempty"`
	Confidence float64    `json:"confidence"`
}
