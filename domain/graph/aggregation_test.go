package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/internal/graphdb/graphdbtest"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

func malwarePattern() typeql.Pattern {
	return typeql.Pattern{typeql.Var("x").Isa("Malware")}
}

func bucket(label, attr string, v float64) graphdb.Group {
	return graphdb.Group{Owner: graphdbtest.Attribute("G-"+label, attr, typeql.ValueTypeString, label), Value: v}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseInterval(t *testing.T) {
	for in, want := range map[string]Interval{"": Day, "day": Day, "month": Month, "year": Year} {
		got, err := ParseInterval(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseInterval("week")
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestTimeSeries_MonthFill(t *testing.T) {
	fake := graphdbtest.New().OnGroup("group $group", bucket("2020-02", "created_at_month", 3))
	s := newTestStore(t, fake)

	points, err := s.TimeSeries(context.Background(), malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(2020, 1, 15),
		EndDate:   day(2020, 4, 2),
		Field:     "created_at",
		Interval:  Month,
	})
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Date: "2020-01", Value: 0},
		{Date: "2020-02", Value: 3},
		{Date: "2020-03", Value: 0},
		{Date: "2020-04", Value: 0},
	}, points)

	assert.Equal(t, []string{
		"match $x isa Malware; $x has created_at_month $group; $x has created_at $date; " +
			"$date >= 2020-01-15T00:00:00.000; $date <= 2020-04-02T00:00:00.000; get; group $group; count;",
	}, fake.Queries())
}

func TestTimeSeries_DayAcrossMonthEnd(t *testing.T) {
	fake := graphdbtest.New().OnGroup("group $group",
		bucket("2020-01-31", "first_seen_day", 1),
		bucket("2020-02-01", "first_seen_day", 2),
	)
	s := newTestStore(t, fake)

	points, err := s.TimeSeries(context.Background(), malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(2020, 1, 30),
		EndDate:   time.Date(2020, 2, 1, 18, 0, 0, 0, time.UTC),
		Field:     "first_seen",
	})
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Date: "2020-01-30", Value: 0},
		{Date: "2020-01-31", Value: 1},
		{Date: "2020-02-01", Value: 2},
	}, points)
}

func TestTimeSeries_YearSum(t *testing.T) {
	fake := graphdbtest.New().OnGroup("group $group", bucket("2019", "created_at_year", 12.5))
	s := newTestStore(t, fake)

	points, err := s.TimeSeries(context.Background(), malwarePattern(), "x", TimeSeriesOptions{
		StartDate:  day(2018, 6, 1),
		EndDate:    day(2020, 1, 1),
		Field:      "created_at",
		Interval:   Year,
		Operation:  typeql.Sum,
		ValueField: "weight",
	})
	require.NoError(t, err)
	assert.Equal(t, []Point{{"2018", 0}, {"2019", 12.5}, {"2020", 0}}, points)
	require.Len(t, fake.Queries(), 1)
	assert.Contains(t, fake.Queries()[0], "$x has weight $value; get; group $group; sum $value;")
}

func TestTimeSeries_DegradedEngineYieldsZeroes(t *testing.T) {
	fake := graphdbtest.New().OnError("group $group", errors.New("connection reset"))
	s := newTestStore(t, fake)

	points, err := s.TimeSeries(context.Background(), malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(2020, 1, 1),
		EndDate:   day(2020, 1, 3),
		Field:     "created_at",
	})
	require.NoError(t, err)
	assert.Equal(t, []Point{{"2020-01-01", 0}, {"2020-01-02", 0}, {"2020-01-03", 0}}, points)
}

func TestTimeSeries_InvalidArguments(t *testing.T) {
	fake := graphdbtest.New()
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.TimeSeries(ctx, malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(2020, 1, 1), EndDate: day(2020, 2, 1), Field: "created_at", Operation: typeql.Sum,
	})
	assert.ErrorIs(t, err, apperror.ErrBadRequest, "sum without a value field")

	_, err = s.TimeSeries(ctx, malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(2020, 2, 1), EndDate: day(2020, 1, 1), Field: "created_at",
	})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	_, err = s.TimeSeries(ctx, malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(2020, 1, 1), EndDate: day(2020, 2, 1), Field: "created at",
	})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	_, err = s.TimeSeries(ctx, nil, "x", TimeSeriesOptions{Field: "created_at"})
	assert.ErrorIs(t, err, ErrMalformedQuery)

	assert.Empty(t, fake.Transactions())
}

func TestTimeSeries_RejectsOversizedRange(t *testing.T) {
	fake := graphdbtest.New()
	s := newTestStore(t, fake)

	points, err := s.TimeSeries(context.Background(), malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(1000, 1, 1),
		EndDate:   day(9999, 12, 31),
		Field:     "created_at",
		Interval:  Day,
	})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.Nil(t, points)
	assert.Empty(t, fake.Transactions())

	points, err = s.TimeSeries(context.Background(), malwarePattern(), "x", TimeSeriesOptions{
		StartDate: day(1000, 1, 1),
		EndDate:   day(9999, 12, 31),
		Field:     "created_at",
		Interval:  Year,
	})
	require.NoError(t, err)
	assert.Len(t, points, 9000)
}

func TestInterval_Buckets(t *testing.T) {
	assert.EqualValues(t, 1, Day.buckets(day(2020, 1, 1), time.Date(2020, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.EqualValues(t, 366, Day.buckets(day(2020, 1, 1), day(2020, 12, 31)))
	assert.EqualValues(t, 4, Month.buckets(day(2020, 1, 15), day(2020, 4, 2)))
	assert.EqualValues(t, 13, Month.buckets(day(2019, 12, 1), day(2020, 12, 1)))
	assert.EqualValues(t, 2, Year.buckets(day(2019, 12, 31), day(2020, 1, 1)))
}

func TestDistribution(t *testing.T) {
	fake := graphdbtest.New().OnGroup("group $group",
		bucket("APT1", "name", 7),
		bucket("APT2", "name", 4),
		graphdb.Group{Owner: graphdbtest.Entity("V9", "Identity", "Stix-Domain-Entity"), Value: 1},
	)
	s := newTestStore(t, fake)

	buckets, err := s.Distribution(context.Background(), malwarePattern(), "x", DistributionOptions{
		Field:      "name",
		Operation:  typeql.Sum,
		ValueField: "weight",
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, []Bucket{{Label: "APT1", Value: 7}, {Label: "APT2", Value: 4}}, buckets)
	assert.Equal(t, []string{
		"match $x isa Malware; $x has name $group; $x has weight $value; get; group $group; sum $value;",
	}, fake.Queries())

	buckets, err = s.Distribution(context.Background(), malwarePattern(), "x", DistributionOptions{Field: "name"})
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, "V9", buckets[2].Label, "non-attribute owners are labelled by id")
}

func TestDistribution_RequiresField(t *testing.T) {
	s := newTestStore(t, graphdbtest.New())
	_, err := s.Distribution(context.Background(), malwarePattern(), "x", DistributionOptions{})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}
