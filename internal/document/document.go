// Package document converts between stored spending documents and typed records.
//
// Documents arrive from the store as loosely typed maps, frequently written by
// older versions of the aggregator, so every accessor here is lenient: a value
// that cannot be coerced reports false rather than failing the whole record.
package document

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Document is a single stored record as a string-keyed map.
type Document map[string]any

// DateLayout is the calendar-day format used for document dates and keys.
const DateLayout = "2006-01-02"

// Float coerces numeric and numeric-string values to float64.
func Float(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int coerces a numeric value to int, truncating fractions.
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// String returns v if it is a string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Bool returns v if it is a bool.
func Bool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Map returns v as a Document if it is a string-keyed map.
func Map(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return Document(m), true
	default:
		return nil, false
	}
}

// List returns v as a slice of values.
func List(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// Date parses calendar dates, RFC3339 timestamps, and time.Time values.
// The result is truncated to midnight UTC of the calendar day.
func Date(v any) (time.Time, bool) {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case string:
		s := strings.TrimSpace(d)
		parsed, err := time.Parse(DateLayout, s)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, s)
			if err != nil {
				return time.Time{}, false
			}
		}
		t = parsed
	default:
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// Float looks up key and coerces it with Float.
func (d Document) Float(key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return Float(v)
}

// Int looks up key and coerces it with Int.
func (d Document) Int(key string) (int, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	return Int(v)
}

// Map looks up a nested document.
func (d Document) Map(key string) (Document, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	return Map(v)
}

// Lookup returns key from d, falling back to the nested metadata document.
func (d Document) Lookup(key string) (any, bool) {
	if v, ok := d[key]; ok && v != nil {
		return v, true
	}
	if meta, ok := d.Map("metadata"); ok {
		if v, ok := meta[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
