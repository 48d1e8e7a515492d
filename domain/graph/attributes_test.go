package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb/graphdbtest"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

func TestResolveAttributes_Collapsing(t *testing.T) {
	fake := graphdbtest.New().
		OnQuery("$x id V1;", graphdbtest.Row("x", graphdbtest.Entity("V1", "Malware", "Stix-Domain-Entity"))).
		SetAttributes("V1",
			graphdbtest.Attribute("A1", "name", typeql.ValueTypeString, "Poison \\\"Ivy\\\""),
			graphdbtest.Attribute("A2", "stix_label", typeql.ValueTypeString, "trojan"),
			graphdbtest.Attribute("A3", "alias", typeql.ValueTypeString, ""),
			graphdbtest.Attribute("A4", "description", typeql.ValueTypeString, "one"),
			graphdbtest.Attribute("A5", "description", typeql.ValueTypeString, "two"),
			graphdbtest.Attribute("A6", "created_at", typeql.ValueTypeDateTime, "2020-01-02T03:04:05"),
			graphdbtest.Attribute("A7", "weight", typeql.ValueTypeLong, float64(3)),
		)
	s := newTestStore(t, fake)

	rec, err := s.LoadByID(context.Background(), "V1", false)
	require.NoError(t, err)

	assert.Equal(t, `Poison "Ivy"`, rec["name"], "single non-multi value becomes a scalar")
	assert.Equal(t, []any{"trojan"}, rec["stix_label"], "multi-valued stays a list")
	assert.Equal(t, []any{}, rec["alias"], "sole empty multi value is an empty list")
	assert.Equal(t, []any{"one", "two"}, rec["description"], "repeated non-multi values stay ordered")
	assert.Equal(t, "2020-01-02T03:04:05.000Z", rec["created_at"])
	assert.Equal(t, float64(3), rec["weight"])
	assert.Equal(t, "V1", rec.ID())
	assert.Equal(t, "Stix-Domain-Entity", rec.ParentType())
}

func TestResolveAttributes_CacheHit(t *testing.T) {
	fake := graphdbtest.New().
		OnQuery("$x id V1;", graphdbtest.Row("x", graphdbtest.Entity("V1", "Malware", "Stix-Domain-Entity"))).
		SetAttributes("V1", graphdbtest.Attribute("A1", "name", typeql.ValueTypeString, "from engine"))
	cache := &mapCache{records: map[string]map[string]any{
		"stix_domain_entities:V1": {"name": "from cache"},
	}}
	s := newTestStore(t, fake)
	s.cache = cache

	rec, err := s.LoadByID(context.Background(), "V1", false)
	require.NoError(t, err)
	assert.Equal(t, "from cache", rec["name"])
	assert.Equal(t, "V1", rec.ID())
	assert.Equal(t, "Stix-Domain-Entity", rec.ParentType())

	rec, err = s.LoadByID(context.Background(), "V1", true)
	require.NoError(t, err)
	assert.Equal(t, "from engine", rec["name"], "bypass skips the cache")
	assert.Equal(t, []string{"stix_domain_entities:V1"}, cache.lookups)
}

func TestResolveAttributes_CacheMissAndError(t *testing.T) {
	tests := []struct {
		name  string
		cache *mapCache
	}{
		{"miss", &mapCache{}},
		{"error counts as miss", &mapCache{err: errors.New("redis down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := graphdbtest.New().
				OnQuery("$x id V1;", graphdbtest.Row("x", graphdbtest.Entity("V1", "Malware", "Stix-Domain-Entity"))).
				SetAttributes("V1", graphdbtest.Attribute("A1", "name", typeql.ValueTypeString, "from engine"))
			s := newTestStore(t, fake)
			s.cache = tt.cache

			rec, err := s.LoadByID(context.Background(), "V1", false)
			require.NoError(t, err)
			assert.Equal(t, "from engine", rec["name"])
		})
	}
}

func TestResolveAttributes_UncachedFamily(t *testing.T) {
	fake := graphdbtest.New().
		OnQuery("$x id V1;", graphdbtest.Row("x", graphdbtest.Entity("V1", "Organization", "Identity"))).
		SetAttributes("V1", graphdbtest.Attribute("A1", "name", typeql.ValueTypeString, "ACME"))
	cache := &mapCache{}
	s := newTestStore(t, fake)
	s.cache = cache

	rec, err := s.LoadByID(context.Background(), "V1", false)
	require.NoError(t, err)
	assert.Equal(t, "ACME", rec["name"])
	assert.Empty(t, cache.lookups)
}

func TestLoadByID_NotFoundAndInvalid(t *testing.T) {
	s := newTestStore(t, graphdbtest.New())

	rec, err := s.LoadByID(context.Background(), "V404", false)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = s.LoadByID(context.Background(), "V1; delete", false)
	assert.Error(t, err)
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		vt   string
		want any
	}{
		{"datetime string", "2019-05-06T07:08:09.123", typeql.ValueTypeDateTime, "2019-05-06T07:08:09.123Z"},
		{"datetime millis", float64(0), typeql.ValueTypeDateTime, "1970-01-01T00:00:00.000Z"},
		{"unparseable datetime kept", "soon", typeql.ValueTypeDateTime, "soon"},
		{"escaped string", `a\\b`, typeql.ValueTypeString, `a\b`},
		{"boolean", true, typeql.ValueTypeBoolean, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeValue(graphdbtest.Attribute("A", "x", tt.vt, tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}
