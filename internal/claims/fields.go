package claims

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// lookup walks a dotted path through nested objects.
func lookup(root map[string]any, path string) (any, bool) {
	var cur any = root
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// first returns the first value among keys that is neither null nor a
// blank string.
func first(rec map[string]any, keys ...string) any {
	_, v := firstKey(rec, keys...)
	return v
}

// firstKey is first that also reports which key held the value.
func firstKey(rec map[string]any, keys ...string) (string, any) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return k, v
	}
	return "", nil
}

// text renders a scalar JSON value as a string. Objects and arrays yield "".
func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// firstText returns the first non-empty textual value among keys.
func firstText(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := text(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

// orUnknown substitutes the sentinel for an empty value.
func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// leadingInt reads an integer the way a lenient integer parser does: optional
// sign, then digits, ignoring anything after them. Values outside the int32
// range do not count as integers.
func leadingInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return fromFloat(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return fromInt64(i)
		}
		if f, err := t.Float64(); err == nil {
			return fromFloat(f)
		}
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		end := 0
		if end < len(s) && (s[end] == '-' || s[end] == '+') {
			end++
		}
		digits := end
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == digits {
			return 0, false
		}
		i, err := strconv.ParseInt(s[:end], 10, 64)
		if err != nil {
			return 0, false
		}
		return fromInt64(i)
	default:
		return 0, false
	}
}

func fromInt64(i int64) (int, bool) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int(i), true
}

func fromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// money normalizes a monetary value to two decimals ("1,234.5" -> "1234.50").
// Values that do not read as a number are kept as written. The rewrite is
// lossy (currency symbol, separators, precision past cents); callers keep the
// source value in Extra when it differs.
func money(v any) string {
	s := text(v)
	if s == "" {
		return Unknown
	}
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return s
	}
	return d.StringFixed(2)
}
