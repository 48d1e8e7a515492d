package typeql

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiterals(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"string", String("plain"), `"plain"`},
		{"long", Long(-42), `-42`},
		{"double whole", Double(3), `3.0`},
		{"double fraction", Double(0.25), `0.25`},
		{"bool", Bool(true), `true`},
		{"datetime converts to utc", DateTime(time.Date(2020, 1, 1, 2, 0, 0, 0, time.FixedZone("X", 2*3600))), `2020-01-01T00:00:00.000`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lit, err := tt.value.literal()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, lit)
		})
	}
}

func TestInvalidLiterals(t *testing.T) {
	_, err := Double(math.NaN()).literal()
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Double(math.Inf(1)).literal()
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = DateTime(time.Time{}).literal()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{"", "plain", `a "b" c`, `back\slash`, `\"`, `trailing\`}
	for _, in := range inputs {
		assert.Equal(t, in, UnescapeString(EscapeString(in)), in)
	}
}

func TestUnescapeKeepsUnknownEscapes(t *testing.T) {
	assert.Equal(t, `line\nbreak`, UnescapeString(`line\nbreak`))
	assert.Equal(t, `say "hi"`, UnescapeString(`say \"hi\"`))
}

func TestParseDateTime(t *testing.T) {
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2020-01-01T00:00:00Z",
		"2020-01-01T00:00:00.000Z",
		"2020-01-01T00:00:00.000",
		"2020-01-01T00:00:00",
		"2020-01-01",
	} {
		got, err := ParseDateTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseDateTime("01/01/2020")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(ValueTypeLong, " 7 ")
	require.NoError(t, err)
	lit, _ := v.literal()
	assert.Equal(t, "7", lit)

	v, err = ParseValue(ValueTypeDateTime, "2020-01-01T00:00:00")
	require.NoError(t, err)
	lit, _ = v.literal()
	assert.Equal(t, "2020-01-01T00:00:00.000", lit)

	v, err = ParseValue("", `x"y`)
	require.NoError(t, err)
	lit, _ = v.literal()
	assert.Equal(t, `"x\"y"`, lit)

	_, err = ParseValue(ValueTypeBoolean, "maybe")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = ParseValue(ValueTypeDouble, "x")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = ParseValue("blob", "x")
	assert.ErrorIs(t, err, ErrInvalid)
}
