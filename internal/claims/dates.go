package claims

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/starford/claimline/internal/apperr"
)

// FallbackFormats are tried, in this order, after the configured format.
// Order matters for strings valid under two layouts: 05/06/2024 is read as
// US (May 6) because MM/DD/YYYY precedes DD/MM/YYYY.
var FallbackFormats = [...]string{
	"YYYY-MM-DD", // ISO
	"MM/DD/YYYY", // US
	"DD-MM-YYYY", // European
	"YYYY/MM/DD", // ISO with slashes
	"DD/MM/YYYY", // UK
}

// Strategy identifies the step of the parse chain that accepted a value.
type Strategy int

const (
	StrategyConfigured Strategy = iota
	StrategyFallback
	StrategyLenient
)

func (s Strategy) String() string {
	switch s {
	case StrategyConfigured:
		return "configured"
	case StrategyFallback:
		return "fallback"
	case StrategyLenient:
		return "lenient"
	default:
		return "unknown"
	}
}

// DateError reports a date value that no strategy could parse.
type DateError struct {
	Value string
}

func (e *DateError) Error() string {
	if e.Value == "" {
		return "missing date"
	}
	return fmt.Sprintf("unparseable date %q", e.Value)
}

func (e *DateError) Unwrap() error { return apperr.ErrUnparseableDate }

var tokenReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"M", "1",
	"D", "2",
)

// Layout converts a token format (YYYY-MM-DD) into a Go reference layout.
// Strings that already contain the reference year are returned unchanged.
func Layout(format string) string {
	if strings.Contains(format, "2006") {
		return format
	}
	return tokenReplacer.Replace(format)
}

// DateParser applies the configured format, then FallbackFormats, then a
// lenient parse. All results are in UTC.
type DateParser struct {
	preferred string
	fallbacks []string
}

// NewDateParser builds a parser preferring format (token or Go layout).
func NewDateParser(format string) *DateParser {
	if format == "" {
		format = DefaultDateFormat
	}
	fb := make([]string, len(FallbackFormats))
	for i, f := range FallbackFormats {
		fb[i] = Layout(f)
	}
	return &DateParser{preferred: Layout(format), fallbacks: fb}
}

// Parse returns the instant raw denotes.
func (p *DateParser) Parse(raw any) (time.Time, error) {
	t, _, err := p.Match(raw)
	return t, err
}

// Match is Parse that also reports which strategy succeeded.
func (p *DateParser) Match(raw any) (time.Time, Strategy, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return time.Time{}, 0, &DateError{}
	case string:
		s = strings.TrimSpace(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return epochMillis(f), StrategyLenient, nil
		}
		s = v.String()
	case float64:
		return epochMillis(v), StrategyLenient, nil
	default:
		return time.Time{}, 0, &DateError{Value: fmt.Sprint(v)}
	}
	if s == "" {
		return time.Time{}, 0, &DateError{}
	}

	if t, err := time.ParseInLocation(p.preferred, s, time.UTC); err == nil {
		return t, StrategyConfigured, nil
	}
	for _, layout := range p.fallbacks {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, StrategyFallback, nil
		}
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.UTC(), StrategyLenient, nil
	}
	return time.Time{}, 0, &DateError{Value: s}
}

func epochMillis(f float64) time.Time {
	return time.UnixMilli(int64(math.Trunc(f))).UTC()
}
