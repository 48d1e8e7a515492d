package graph

import (
	"errors"
)

// ErrMalformedQuery marks a query whose shape breaks a structural assumption
// (missing variable, unparseable pattern). It is never absorbed by a read
// scope.
var ErrMalformedQuery = errors.New("graph: malformed query")

// Synthetic record fields.
const (
	FieldID         = "id"
	FieldParentType = "parent_type"
)

// Record is a decoded attribute record: attribute type label to a scalar or
// an ordered list, plus id and parent_type.
type Record map[string]any

// ID returns the record's concept id.
func (r Record) ID() string {
	s, _ := r[FieldID].(string)
	return s
}

// ParentType returns the record's supertype label.
func (r Record) ParentType() string {
	s, _ := r[FieldParentType].(string)
	return s
}

// String returns the string value of key, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Relation is a relation record. From and To are canonically oriented.
type Relation struct {
	ID               string     `json:"id"`
	RelationshipType string     `json:"relationship_type"`
	Inferred         bool       `json:"inferred"`
	From             Record     `json:"from"`
	To               Record     `json:"to"`
	Attributes       Record     `json:"attributes,omitempty"`
	Extra            Record     `json:"extra,omitempty"`
	Inferences       []Relation `json:"inferences,omitempty"`
}

// NodeResult is one row of FetchNodes.
type NodeResult struct {
	Node     Record `json:"node"`
	Relation Record `json:"relation,omitempty"`
}
