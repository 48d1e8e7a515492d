package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emergent-company/emergent.graphcore/internal/graphdb"
	"github.com/emergent-company/emergent.graphcore/pkg/logger"
	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

// RecordDateLayout is how datetime attributes appear in records.
const RecordDateLayout = "2006-01-02T15:04:05.000Z"

// resolveAttributes turns a concept into its attribute record. Cached
// families are served from the attribute cache unless bypassCache is set;
// a cache failure counts as a miss.
func (s *Store) resolveAttributes(ctx context.Context, tx graphdb.Transaction, c graphdb.Concept, bypassCache bool) (Record, error) {
	if !bypassCache && s.cache != nil && c.IsEntity() {
		if family, ok := s.schema.CacheFamily(c.Supertype); ok {
			cached, err := s.cache.Get(ctx, family, c.IID)
			switch {
			case err != nil:
				cacheLookups.WithLabelValues("error").Inc()
				s.log.Warn("attribute cache lookup failed",
					slog.String("family", family),
					slog.String("id", c.IID),
					logger.Error(err))
			case len(cached) > 0:
				cacheLookups.WithLabelValues("hit").Inc()
				rec := Record(cached)
				rec[FieldID] = c.IID
				rec[FieldParentType] = c.Supertype
				return rec, nil
			default:
				cacheLookups.WithLabelValues("miss").Inc()
			}
		}
	}

	attrs, err := tx.Attributes(ctx, c.IID)
	if err != nil {
		return nil, fmt.Errorf("attributes of %s: %w", c.IID, err)
	}
	return s.collapse(c, attrs), nil
}

// collapse groups attribute instances by type label. Labels outside the
// multi-valued allow-list with a single value become scalars; everything
// else stays an ordered list, and a multi-valued list holding only "" is
// empty.
func (s *Store) collapse(c graphdb.Concept, attrs []graphdb.Concept) Record {
	grouped := make(map[string][]any, len(attrs))
	for _, a := range attrs {
		grouped[a.Type] = append(grouped[a.Type], decodeValue(a))
	}

	rec := make(Record, len(grouped)+2)
	for label, values := range grouped {
		multi := s.schema.IsMulti(label)
		switch {
		case !multi && len(values) == 1:
			rec[label] = values[0]
		case multi && len(values) == 1 && values[0] == "":
			rec[label] = []any{}
		default:
			rec[label] = values
		}
	}
	rec[FieldID] = c.IID
	rec[FieldParentType] = c.Supertype
	return rec
}

func decodeValue(a graphdb.Concept) any {
	switch a.ValueType {
	case typeql.ValueTypeDateTime:
		switch v := a.Value.(type) {
		case string:
			t, err := typeql.ParseDateTime(v)
			if err != nil {
				return v
			}
			return t.UTC().Format(RecordDateLayout)
		case float64:
			return time.UnixMilli(int64(v)).UTC().Format(RecordDateLayout)
		case int64:
			return time.UnixMilli(v).UTC().Format(RecordDateLayout)
		case time.Time:
			return v.UTC().Format(RecordDateLayout)
		}
	case typeql.ValueTypeString:
		if v, ok := a.Value.(string); ok {
			return typeql.UnescapeString(v)
		}
	}
	return a.Value
}
