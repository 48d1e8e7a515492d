package typeql

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned by Build when a query contains an invalid label,
// variable, identifier or literal.
var ErrInvalid = errors.New("typeql: invalid query")

// Value types reported by the engine for attribute types.
const (
	ValueTypeString   = "string"
	ValueTypeLong     = "long"
	ValueTypeDouble   = "double"
	ValueTypeBoolean  = "boolean"
	ValueTypeDateTime = "datetime"
)

// DateTimeLayout is the literal form of datetime values.
const DateTimeLayout = "2006-01-02T15:04:05.000"

// Value is a literal that can appear in a query.
type Value interface {
	literal() (string, error)
}

type stringValue string

type longValue int64

type doubleValue float64

type boolValue bool

type dateValue time.Time

// String is a quoted string literal.
func String(s string) Value { return stringValue(s) }

// Long is an integer literal.
func Long(n int64) Value { return longValue(n) }

// Double is a floating point literal.
func Double(f float64) Value { return doubleValue(f) }

// Bool is a boolean literal.
func Bool(b bool) Value { return boolValue(b) }

// DateTime is a datetime literal, rendered in UTC.
func DateTime(t time.Time) Value { return dateValue(t) }

func (v stringValue) literal() (string, error) {
	return `"` + EscapeString(string(v)) + `"`, nil
}

func (v longValue) literal() (string, error) {
	return strconv.FormatInt(int64(v), 10), nil
}

func (v doubleValue) literal() (string, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: non-finite double %v", ErrInvalid, f)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

func (v boolValue) literal() (string, error) {
	return strconv.FormatBool(bool(v)), nil
}

func (v dateValue) literal() (string, error) {
	t := time.Time(v)
	if t.IsZero() {
		return "", fmt.Errorf("%w: zero datetime", ErrInvalid)
	}
	return t.UTC().Format(DateTimeLayout), nil
}

// EscapeString escapes backslashes and double quotes for a string literal.
func EscapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnescapeString reverses EscapeString. Engines echo stored strings with
// their escapes intact, so answers are unescaped on the way out.
func UnescapeString(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if escaped {
			if r != '\\' && r != '"' {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	if escaped {
		b.WriteRune('\\')
	}
	return b.String()
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	DateTimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDateTime accepts the datetime forms callers and the engine use.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized datetime %q", ErrInvalid, s)
}

// ParseValue converts raw input into a literal of the given value type.
func ParseValue(valueType, raw string) (Value, error) {
	switch valueType {
	case ValueTypeString, "":
		return String(raw), nil
	case ValueTypeLong:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: long %q", ErrInvalid, raw)
		}
		return Long(n), nil
	case ValueTypeDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: double %q", ErrInvalid, raw)
		}
		return Double(f), nil
	case ValueTypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: boolean %q", ErrInvalid, raw)
		}
		return Bool(b), nil
	case ValueTypeDateTime:
		t, err := ParseDateTime(raw)
		if err != nil {
			return nil, err
		}
		return DateTime(t), nil
	default:
		return nil, fmt.Errorf("%w: unknown value type %q", ErrInvalid, valueType)
	}
}
