package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/apperror"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

// Interval is a time-series bucket size.
type Interval string

// MaxSeriesPoints bounds the number of buckets one TimeSeries call may return.
const MaxSeriesPoints = 10000

const (
	Day   Interval = "day"
	Month Interval = "month"
	Year  Interval = "year"
)

// ParseInterval validates s; empty means Day.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case "":
		return Day, nil
	case Day, Month, Year:
		return Interval(s), nil
	}
	return "", apperror.NewBadRequest(fmt.Sprintf("invalid interval %q", s))
}

func (i Interval) layout() string {
	switch i {
	case Month:
		return "2006-01"
	case Year:
		return "2006"
	}
	return "2006-01-02"
}

func (i Interval) truncate(t time.Time) time.Time {
	t = t.UTC()
	switch i {
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// buckets returns how many buckets cover start..end inclusive.
func (i Interval) buckets(start, end time.Time) int64 {
	a, b := i.truncate(start), i.truncate(end)
	switch i {
	case Month:
		return int64(b.Year()-a.Year())*12 + int64(b.Month()-a.Month()) + 1
	case Year:
		return int64(b.Year()-a.Year()) + 1
	}
	return (b.Unix()-a.Unix())/86400 + 1
}

func (i Interval) next(t time.Time) time.Time {
	switch i {
	case Month:
		return t.AddDate(0, 1, 0)
	case Year:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 0, 1)
}

// TimeSeriesOptions configures TimeSeries.
type TimeSeriesOptions struct {
	StartDate  time.Time
	EndDate    time.Time
	Operation  typeql.Method
	Field      string
	Interval   Interval
	ValueField string
	Infer      *bool
}

// Point is one time-series bucket.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// DistributionOptions configures Distribution.
type DistributionOptions struct {
	Operation  typeql.Method
	Field      string
	ValueField string
	Limit      int
	Infer      *bool
}

// Bucket is one distribution entry.
type Bucket struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// groupQuery renders match <pattern>; $node has <by> $group; [$node has
// <valueField> $value;] get; group $group; <op> [$value];
func groupQuery(pattern typeql.Pattern, node typeql.Var, by string, op typeql.Method, valueField string, extra ...typeql.Statement) (string, error) {
	if op == "" {
		op = typeql.Count
	}
	if op != typeql.Count && valueField == "" {
		return "", apperror.NewBadRequest(fmt.Sprintf("operation %s requires a value field", op))
	}
	for _, l := range []string{by, valueField} {
		if l != "" && !typeql.ValidLabel(l) {
			return "", apperror.NewBadRequest(fmt.Sprintf("invalid field %q", l))
		}
	}

	stmts := append(append(typeql.Pattern(nil), pattern...), node.HasVar(by, "group"))
	stmts = append(stmts, extra...)
	var value typeql.Var
	if op != typeql.Count {
		value = "value"
		stmts = append(stmts, node.HasVar(valueField, value))
	}
	return build(typeql.MatchPattern(stmts).Get().Group("group").Aggregate(op, value))
}

func groupLabel(c graphdb.Concept) string {
	if !c.IsAttribute() {
		return c.IID
	}
	switch v := decodeValue(c).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// TimeSeries aggregates the nodes bound to node per date bucket between
// StartDate and EndDate inclusive. Every bucket in the range is present;
// buckets without answers are 0.
func (s *Store) TimeSeries(ctx context.Context, pattern typeql.Pattern, node string, opts TimeSeriesOptions) ([]Point, error) {
	if node == "" || len(pattern) == 0 {
		return nil, fmt.Errorf("%w: pattern and node variable required", ErrMalformedQuery)
	}
	if opts.Interval == "" {
		opts.Interval = Day
	}
	if opts.EndDate.Before(opts.StartDate) {
		return nil, apperror.NewBadRequest("endDate is before startDate")
	}
	if n := opts.Interval.buckets(opts.StartDate, opts.EndDate); n > MaxSeriesPoints {
		return nil, apperror.NewBadRequest(fmt.Sprintf("range spans %d %s buckets, at most %d allowed", n, opts.Interval, MaxSeriesPoints))
	}
	if !typeql.ValidLabel(opts.Field) {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid field %q", opts.Field))
	}

	v := typeql.Var(node)
	text, err := groupQuery(pattern, v, opts.Field+"_"+string(opts.Interval), opts.Operation, opts.ValueField,
		v.HasVar(opts.Field, "date"),
		typeql.Var("date").Compare(typeql.Gte, typeql.DateTime(opts.StartDate)),
		typeql.Var("date").Compare(typeql.Lte, typeql.DateTime(opts.EndDate)),
	)
	if err != nil {
		return nil, err
	}

	groups, err := readTx(ctx, s, "time_series", s.inferOr(opts.Infer), func(ctx context.Context, tx graphdb.Transaction) ([]graphdb.Group, error) {
		return tx.Group(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return fillSeries(groups, opts.StartDate, opts.EndDate, opts.Interval), nil
}

func fillSeries(groups []graphdb.Group, start, end time.Time, interval Interval) []Point {
	values := make(map[string]float64, len(groups))
	for _, g := range groups {
		values[groupLabel(g.Owner)] += g.Value
	}
	layout := interval.layout()
	out := make([]Point, 0, interval.buckets(start, end))
	last := interval.truncate(end)
	for t := interval.truncate(start); !t.After(last); t = interval.next(t) {
		label := t.Format(layout)
		out = append(out, Point{Date: label, Value: values[label]})
	}
	return out
}

// Distribution aggregates the nodes bound to node per value of opts.Field.
// Only values that occur are returned, in engine order.
func (s *Store) Distribution(ctx context.Context, pattern typeql.Pattern, node string, opts DistributionOptions) ([]Bucket, error) {
	if node == "" || len(pattern) == 0 {
		return nil, fmt.Errorf("%w: pattern and node variable required", ErrMalformedQuery)
	}
	if opts.Field == "" {
		return nil, apperror.NewBadRequest("field is required")
	}
	text, err := groupQuery(pattern, typeql.Var(node), opts.Field, opts.Operation, opts.ValueField)
	if err != nil {
		return nil, err
	}

	groups, err := readTx(ctx, s, "distribution", s.inferOr(opts.Infer), func(ctx context.Context, tx graphdb.Transaction) ([]graphdb.Group, error) {
		return tx.Group(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	out := make([]Bucket, 0, len(groups))
	for _, g := range groups {
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
		out = append(out, Bucket{Label: groupLabel(g.Owner), Value: g.Value})
	}
	return out, nil
}
