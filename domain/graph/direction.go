package graph

import (
	"github.com/emergent-company/emergent.graphcore/domain/schema"
	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
)

func endpoint(c graphdb.Concept) schema.Endpoint {
	return schema.Endpoint{Type: c.Type, Supertype: c.Supertype}
}

// orient puts rel's endpoints in canonical order. Bindings the schema does
// not orient, or that are valid both ways, keep their engine order.
func (s *Store) orient(rel *Relation, from, to graphdb.Concept) {
	if s.schema.ShouldSwap(rel.RelationshipType, endpoint(from), endpoint(to)) {
		rel.From, rel.To = rel.To, rel.From
	}
}
