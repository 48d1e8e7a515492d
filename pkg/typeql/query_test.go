package typeql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, q Query) string {
	t.Helper()
	s, err := q.Build()
	require.NoError(t, err)
	return s
}

func TestGetQuery(t *testing.T) {
	base := Match(Var("x").Isa("Malware"), Var("x").HasVar("name", "o"))

	assert.Equal(t,
		`match $x isa Malware; $x has name $o; get $x;`,
		build(t, base.Get("x")))
	assert.Equal(t,
		`match $x isa Malware; $x has name $o; get $x, $o; sort $o desc; offset 25; limit 25;`,
		build(t, base.Get("x", "o").Sort("o", Desc).Offset(25).Limit(25)))
	assert.Equal(t,
		`match $x isa Malware; $x has name $o; get;`,
		build(t, base.Get()))
}

func TestGetQueryDefaultsSortToAsc(t *testing.T) {
	q := Match(Var("x").Isa("A")).Get("x").Sort("x", "")
	assert.Equal(t, `match $x isa A; get $x; sort $x asc;`, build(t, q))
}

func TestGetQueryRejectsNegativePaging(t *testing.T) {
	_, err := Match(Var("x").Isa("A")).Get("x").Offset(-1).Build()
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Match(Var("x").Isa("A")).Get("x").Limit(-1).Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAggregateQuery(t *testing.T) {
	m := Match(Var("x").Isa("A"))

	assert.Equal(t, `match $x isa A; get $x; count;`, build(t, m.Get("x").Count()))
	assert.Equal(t, `match $x isa A; get $x, $w; sum $w;`, build(t, m.Get("x", "w").Aggregate(Sum, "w")))

	_, err := m.Get("x").Aggregate(Mean, "").Build()
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = m.Get("x").Aggregate(Method("avg"), "x").Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestGroupQuery(t *testing.T) {
	m := Match(Var("x").Isa("Report"), Var("x").HasVar("published_month", "g"))

	assert.Equal(t,
		`match $x isa Report; $x has published_month $g; get; group $g; count;`,
		build(t, m.Get().Group("g")))
	assert.Equal(t,
		`match $x isa Report; $x has published_month $g; get $g, $v; group $g; max $v;`,
		build(t, m.Get("g", "v").Group("g").Aggregate(Max, "v")))
}

func TestInsertQuery(t *testing.T) {
	assert.Equal(t,
		`insert $x isa Malware, has name "x";`,
		build(t, Insert(Var("x").Isa("Malware").Has("name", String("x")))))

	q := Match(Var("from").ID("V1"), Var("to").ID("V2")).
		Insert(Var("rel").Rel(Role("source", "from"), Role("target", "to")).Isa("uses"))
	assert.Equal(t,
		`match $from id V1; $to id V2; insert $rel (source: $from, target: $to) isa uses;`,
		build(t, q))

	_, err := Insert().Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeleteQuery(t *testing.T) {
	q := Match(Var("x").ID("V1"), Var("a").ID("V9"), Var("x").HasVia("name", "a", "r")).Delete("r")
	assert.Equal(t, `match $x id V1; $a id V9; $x has name $a via $r; delete $r;`, build(t, q))

	_, err := Match(Var("x").ID("V1")).Delete().Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEmptyMatchIsInvalid(t *testing.T) {
	_, err := Match().Get("x").Build()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAndDoesNotMutateReceiver(t *testing.T) {
	base := Match(Var("x").Isa("A"))
	extended := base.And(Var("x").HasVar("name", "o"))

	assert.Len(t, base.Pattern(), 1)
	assert.Len(t, extended.Pattern(), 2)
}

func TestParseOrderAndMethod(t *testing.T) {
	o, err := ParseOrder("DESC")
	require.NoError(t, err)
	assert.Equal(t, Desc, o)

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, Asc, o)

	_, err = ParseOrder("sideways")
	assert.ErrorIs(t, err, ErrInvalid)

	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Count, m)

	m, err = ParseMethod("Median")
	require.NoError(t, err)
	assert.Equal(t, Median, m)

	_, err = ParseMethod("avg")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMustBuildPanics(t *testing.T) {
	assert.Panics(t, func() { MustBuild(Match().Get()) })
	assert.Equal(t, `match $x isa A; get $x;`, MustBuild(Match(Var("x").Isa("A")).Get("x")))
}
