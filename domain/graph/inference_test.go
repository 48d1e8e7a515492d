package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/internal/graphdb/graphdbtest"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
)

func TestGraqlRewriter_Bind(t *testing.T) {
	rw := NewGraqlRewriter()

	tests := []struct {
		name       string
		pattern    string
		n          int
		wantVar    string
		wantType   string
		wantText   string
		wantPlayer []Player
	}{
		{
			name:     "anonymous relation gets a name",
			pattern:  "{$x id V1; $y isa Malware; (user: $x, usage: $y) isa uses;}",
			n:        2,
			wantVar:  "rel_2",
			wantType: "uses",
			wantText: "$x id V1; $y isa Malware; $rel_2 (user: $x, usage: $y) isa uses;",
			wantPlayer: []Player{
				{Role: "user", Var: "x"},
				{Role: "usage", Var: "y"},
			},
		},
		{
			name:     "named relation is kept",
			pattern:  "$r (source: $a, target: $b) isa targets; $b isa Organization;",
			wantVar:  "r",
			wantType: "targets",
			wantText: "$r (source: $a, target: $b) isa targets; $b isa Organization;",
			wantPlayer: []Player{
				{Role: "source", Var: "a"},
				{Role: "target", Var: "b"},
			},
		},
		{
			name:     "type from a separate isa",
			pattern:  "$r ($a, $b); $r isa related-to;",
			wantVar:  "r",
			wantType: "related-to",
			wantText: "$r ($a, $b); $r isa related-to;",
			wantPlayer: []Player{
				{Var: "a"},
				{Var: "b"},
			},
		},
		{
			name:     "semicolons inside strings",
			pattern:  `$a has name "x; y"; (user: $a, usage: $b) isa uses;`,
			wantVar:  "rel_0",
			wantType: "uses",
			wantText: `$a has name "x; y"; $rel_0 (user: $a, usage: $b) isa uses;`,
			wantPlayer: []Player{
				{Role: "user", Var: "a"},
				{Role: "usage", Var: "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := rw.Bind(tt.pattern, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVar, b.RelVar)
			assert.Equal(t, tt.wantType, b.Type)
			assert.Equal(t, tt.wantText, b.Text())
			assert.Equal(t, tt.wantPlayer, b.Players)
		})
	}
}

func TestGraqlRewriter_BindErrors(t *testing.T) {
	rw := NewGraqlRewriter()

	_, err := rw.Bind(`$x has name "a";`, 0)
	assert.ErrorIs(t, err, ErrNoRelation)

	_, err = rw.Bind("{ $x isa A; } or { $x isa B; }; (a: $x, b: $y) isa t;", 0)
	assert.ErrorIs(t, err, ErrMalformedQuery)

	_, err = rw.Bind("(a: $x) isa t;", 0)
	assert.ErrorIs(t, err, ErrMalformedQuery, "a single player is not a binary relation")

	_, err = rw.Bind(`$x has name "open;`, 0)
	assert.ErrorIs(t, err, ErrMalformedQuery)
}

func TestGraqlRewriter_Pin(t *testing.T) {
	rw := NewGraqlRewriter()
	b, err := rw.Bind("{$x id V1; $y isa Malware; $y has name $n; (user: $x, usage: $y) isa uses;}", 0)
	require.NoError(t, err)

	pinned, err := rw.Pin(b, map[string]string{"x": "V1", "y": "V2"})
	require.NoError(t, err)
	assert.Equal(t, "$x id V1; $y id V2; $y has name $n; $rel_0 (user: $x, usage: $y) isa uses;", pinned)

	_, err = rw.Pin(b, map[string]string{"x": "V1"})
	assert.ErrorIs(t, err, ErrMalformedQuery)

	_, err = rw.Pin(b, map[string]string{"x": "V1", "y": "V2; delete"})
	assert.Error(t, err)
}

func TestGraqlRewriter_PinSplitsPropertyLists(t *testing.T) {
	rw := NewGraqlRewriter()
	b, err := rw.Bind(`{$x id V1, isa Malware; $y isa Tool, has name "a, b"; (user: $x, usage: $y) isa uses, has weight 3;}`, 1)
	require.NoError(t, err)
	assert.Equal(t, `$x id V1; $x isa Malware; $y isa Tool; $y has name "a, b"; `+
		`$rel_1 (user: $x, usage: $y) isa uses; $rel_1 has weight 3;`, b.Text())

	pinned, err := rw.Pin(b, map[string]string{"x": "V1", "y": "V2"})
	require.NoError(t, err)
	assert.Equal(t, `$x id V1; $y id V2; $y has name "a, b"; `+
		`$rel_1 (user: $x, usage: $y) isa uses; $rel_1 has weight 3;`, pinned)

	_, err = rw.Parse(pinned)
	require.NoError(t, err)
}

func TestGraqlRewriter_PinRefusesUnloadablePatterns(t *testing.T) {
	rw := NewGraqlRewriter()
	b, err := rw.Bind("$r (user: $x, usage: $y) isa uses; $s (user: $x, usage: $z) isa uses;", 0)
	require.NoError(t, err)

	_, err = rw.Pin(b, map[string]string{"x": "V1", "y": "V2"})
	assert.ErrorIs(t, err, ErrMalformedQuery)
}

func TestGraqlRewriter_Parse(t *testing.T) {
	rw := NewGraqlRewriter()

	b, err := rw.Parse(`$x id V1; $y id V2; $y has name "a"; $r (user: $x, usage: $y) isa uses;`)
	require.NoError(t, err)
	assert.Equal(t, "r", b.RelVar)
	assert.Equal(t, []string{"x", "y"}, b.playerVars())

	rejected := []string{
		"$x id V1; (user: $x, usage: $y) isa uses;",
		"$r (a: $x, b: $y) isa t; $s (a: $x, b: $y) isa t;",
		"$r (a: $x, b: $y) isa t, has weight 3;",
		"$r (a: $x, b: $y) isa t; $x sub entity;",
		"$x id V1;",
		"$r (a: $x, b: $y) isa t; match $z;",
	}
	for _, text := range rejected {
		_, err := rw.Parse(text)
		assert.Error(t, err, text)
	}
}

func TestInferenceToken_RoundTrip(t *testing.T) {
	pattern := `$x id V1; $y id V2; $y has name "é"; $r (user: $x, usage: $y) isa uses;`
	token := EncodeInferenceToken(pattern)

	assert.True(t, IsInferenceToken(token))
	assert.False(t, IsInferenceToken("V123"))
	got, err := DecodeInferenceToken(token)
	require.NoError(t, err)
	assert.Equal(t, pattern, got)

	_, err = DecodeInferenceToken("V123")
	assert.ErrorIs(t, err, ErrMalformedQuery)
	_, err = DecodeInferenceToken("inf_***")
	assert.ErrorIs(t, err, ErrMalformedQuery)
}

// inferredTargets scripts an inferred targets(actor, org) answer derived
// from a materialized uses(actor, malware) and an inferred
// targets(malware, org).
func inferredTargets() *graphdbtest.Fake {
	top := graphdbtest.Row(
		"rel", graphdbtest.Relation("R1", "targets", "stix_relation", true),
		"from", graphdbtest.Entity("V1", "Threat-Actor", "Stix-Domain-Entity"),
		"to", graphdbtest.Entity("V3", "Organization", "Identity"),
	)
	top.Explainables = map[string]string{"rel": "E1"}

	combined := graphdbtest.Row(
		"rel_0", graphdbtest.Relation("R2", "uses", "stix_relation", false),
		"a", graphdbtest.Entity("V1", "Threat-Actor", "Stix-Domain-Entity"),
		"b", graphdbtest.Entity("V2", "Malware", "Stix-Domain-Entity"),
		"r", graphdbtest.Relation("R3", "targets", "stix_relation", true),
		"c", graphdbtest.Entity("V3", "Organization", "Identity"),
	)

	return graphdbtest.New().
		OnQuery("isa targets; get;", top).
		OnQuery("$rel_0 (user: $a, usage: $b) isa uses;", combined).
		SetExplanation("E1",
			graphdb.Explanation{Rule: "transitive-targets", Pattern: "{$a id V1; $b isa Malware; (user: $a, usage: $b) isa uses;}"},
			graphdb.Explanation{Rule: "transitive-targets", Pattern: "{$b id V2; $c isa Organization; $r (source: $b, target: $c) isa targets;}"},
			graphdb.Explanation{Rule: "transitive-targets", Pattern: `{$c has name "ACME";}`},
		).
		SetAttributes("R2", graphdbtest.Attribute("A1", "weight", "long", float64(2)))
}

func TestFetchRelations_ReconstructsInference(t *testing.T) {
	fake := inferredTargets()
	s := newTestStore(t, fake)

	rels, err := s.FetchRelations(context.Background(), relationsQuery("targets"), RelationQuery{Relation: "rel", From: "from", To: "to"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	rel := rels[0]

	assert.True(t, rel.Inferred)
	assert.Nil(t, rel.Attributes)
	require.True(t, IsInferenceToken(rel.ID))
	text, err := DecodeInferenceToken(rel.ID)
	require.NoError(t, err)
	assert.Equal(t, "$rel ($from, $to) isa targets; $from id V1; $to id V3;", text)

	require.Len(t, rel.Inferences, 2)
	uses := rel.Inferences[0]
	assert.Equal(t, "R2", uses.ID)
	assert.Equal(t, "uses", uses.RelationshipType)
	assert.False(t, uses.Inferred)
	assert.Equal(t, "V1", uses.From.ID())
	assert.Equal(t, "V2", uses.To.ID())
	assert.Equal(t, float64(2), uses.Attributes["weight"])

	sub := rel.Inferences[1]
	assert.True(t, sub.Inferred)
	assert.Equal(t, "targets", sub.RelationshipType)
	assert.Equal(t, "V2", sub.From.ID())
	assert.Equal(t, "V3", sub.To.ID())
	subText, err := DecodeInferenceToken(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "$b id V2; $c id V3; $r (source: $b, target: $c) isa targets;", subText)

	assert.Contains(t, fake.Queries(),
		"match $a id V1; $b isa Malware; $rel_0 (user: $a, usage: $b) isa uses; "+
			"$b id V2; $c isa Organization; $r (source: $b, target: $c) isa targets; get;")
}

func TestFetchRelations_ExplanationMatchesNothing(t *testing.T) {
	fake := inferredTargets().OnQuery("$rel_0 (user: $a, usage: $b) isa uses;")
	s := newTestStore(t, fake)

	rels, err := s.FetchRelations(context.Background(), relationsQuery("targets"), RelationQuery{Relation: "rel", From: "from", To: "to"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.True(t, rels[0].Inferred)
	assert.Empty(t, rels[0].Inferences)
}

func TestLoadRelationByID_InferenceToken(t *testing.T) {
	pinned := "$b id V2; $c id V3; $r (source: $b, target: $c) isa targets;"
	token := EncodeInferenceToken(pinned)

	fake := graphdbtest.New().OnQuery("$b id V2; $c id V3;", graphdbtest.Row(
		"r", graphdbtest.Relation("R3", "targets", "stix_relation", true),
		"b", graphdbtest.Entity("V2", "Malware", "Stix-Domain-Entity"),
		"c", graphdbtest.Entity("V3", "Organization", "Identity"),
	))
	s := newTestStore(t, fake)

	rel, err := s.LoadRelationByID(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, token, rel.ID)
	assert.True(t, rel.Inferred)
	assert.Equal(t, "V2", rel.From.ID())
	assert.Equal(t, []string{"match " + pinned + " get;"}, fake.Queries())
	assert.True(t, fake.Transactions()[0].Options.Infer)
}

func TestLoadRelationByID_RejectsForgedTokens(t *testing.T) {
	s := newTestStore(t, graphdbtest.New())

	for _, token := range []string{
		"inf_***",
		EncodeInferenceToken("$x id V1; $x isa thing; delete $x;"),
		EncodeInferenceToken("$x id V1;"),
	} {
		_, err := s.LoadRelationByID(context.Background(), token)
		assert.ErrorIs(t, err, apperror.ErrBadRequest, token)
	}
}

func TestLoadRelationByID_Materialized(t *testing.T) {
	fake := graphdbtest.New().OnQuery("id R9", graphdbtest.Row(
		"rel", graphdbtest.Relation("R9", "uses", "stix_relation", false),
		"from", graphdbtest.Entity("V2", "Malware", "Stix-Domain-Entity"),
		"to", graphdbtest.Entity("V1", "Threat-Actor", "Stix-Domain-Entity"),
	))
	s := newTestStore(t, fake)

	rel, err := s.LoadRelationByID(context.Background(), "R9")
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, "R9", rel.ID)
	assert.Equal(t, "V1", rel.From.ID(), "oriented actor first")
	assert.Equal(t, []string{"match $rel ($from, $to) id R9; get;"}, fake.Queries())

	rel, err = s.LoadRelationByID(context.Background(), "R404")
	require.NoError(t, err)
	assert.Nil(t, rel)
}
