package claims

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/claimline/internal/apperr"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFallbackFormats_Order(t *testing.T) {
	assert.Equal(t, [...]string{"YYYY-MM-DD", "MM/DD/YYYY", "DD-MM-YYYY", "YYYY/MM/DD", "DD/MM/YYYY"}, FallbackFormats)
}

func TestLayout(t *testing.T) {
	cases := map[string]string{
		"YYYY-MM-DD":          "2006-01-02",
		"MM/DD/YYYY":          "01/02/2006",
		"DD-MM-YYYY":          "02-01-2006",
		"M/D/YY":              "1/2/06",
		"YYYY-MM-DD HH:mm:ss": "2006-01-02 15:04:05",
		"02 Jan 2006":         "02 Jan 2006",
	}
	for in, want := range cases {
		assert.Equal(t, want, Layout(in), "Layout(%q)", in)
	}
}

func TestDateParser_ConfiguredFormat(t *testing.T) {
	p := NewDateParser("MM/DD/YYYY")
	got, strategy, err := p.Match("01/15/2024")
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.January, 15), got)
	assert.Equal(t, StrategyConfigured, strategy)
}

func TestDateParser_StrictISORejectsThenFallsBack(t *testing.T) {
	_, err := time.Parse(Layout("YYYY-MM-DD"), "01/15/2024")
	require.Error(t, err, "strict ISO must reject a US date")

	p := NewDateParser("YYYY-MM-DD")
	got, strategy, err := p.Match("01/15/2024")
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.January, 15), got)
	assert.Equal(t, StrategyFallback, strategy)
}

func TestDateParser_AmbiguousPrefersUS(t *testing.T) {
	p := NewDateParser("")
	got, err := p.Parse("05/06/2024")
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.May, 6), got)
}

func TestDateParser_FallbackFormats(t *testing.T) {
	p := NewDateParser("")
	cases := map[string]time.Time{
		"2024-03-09": day(2024, time.March, 9),
		"03/09/2024": day(2024, time.March, 9),
		"09-03-2024": day(2024, time.March, 9),
		"2024/03/09": day(2024, time.March, 9),
		"25/12/2023": day(2023, time.December, 25),
	}
	for in, want := range cases {
		got, err := p.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestDateParser_Lenient(t *testing.T) {
	p := NewDateParser("")
	got, strategy, err := p.Match("March 9, 2024")
	require.NoError(t, err)
	assert.Equal(t, StrategyLenient, strategy)
	assert.True(t, got.Equal(day(2024, time.March, 9)), "got %v", got)

	got, strategy, err = p.Match(json.Number("1704067200000"))
	require.NoError(t, err)
	assert.Equal(t, StrategyLenient, strategy)
	assert.True(t, got.Equal(day(2024, time.January, 1)), "got %v", got)
}

func TestDateParser_Failures(t *testing.T) {
	p := NewDateParser("")
	for _, raw := range []any{nil, "", "   ", "not a date", true} {
		_, err := p.Parse(raw)
		require.Error(t, err, "%#v", raw)
		assert.True(t, errors.Is(err, apperr.ErrUnparseableDate), "%#v: %v", raw, err)
	}

	_, err := p.Parse("not a date")
	var de *DateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "not a date", de.Value)
}
