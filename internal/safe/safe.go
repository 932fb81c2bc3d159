// Package safe reads values out of loosely typed provider payloads
// (decoded JSON documents) without panicking on missing or partial fields.
package safe

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup walks doc along path. String segments index objects, int segments
// index arrays. It reports false as soon as a segment is missing or the
// document has an unexpected shape.
func Lookup(doc any, path ...any) (any, bool) {
	cur := doc
	for _, seg := range path {
		switch key := seg.(type) {
		case string:
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = obj[key]
			if !ok {
				return nil, false
			}
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return nil, false
			}
			cur = arr[key]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Float returns the number at path. Numeric strings are accepted.
func Float(doc any, path ...any) (float64, bool) {
	v, ok := Lookup(doc, path...)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// FloatOr returns the number at path or def.
func FloatOr(doc any, def float64, path ...any) float64 {
	if f, ok := Float(doc, path...); ok {
		return f
	}
	return def
}

// Int returns the number at path truncated to an int.
func Int(doc any, path ...any) (int, bool) {
	f, ok := Float(doc, path...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// IntOr returns the number at path or def.
func IntOr(doc any, def int, path ...any) int {
	if n, ok := Int(doc, path...); ok {
		return n
	}
	return def
}

// String returns the string at path. Numbers are formatted.
func String(doc any, path ...any) (string, bool) {
	v, ok := Lookup(doc, path...)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}

// StringOr returns the string at path or def.
func StringOr(doc any, def string, path ...any) string {
	if s, ok := String(doc, path...); ok {
		return s
	}
	return def
}

// Bool returns the boolean at path. The strings "yes", "true", "oui" and
// "1" (case-insensitive) count as true, "no", "false", "non" and "0" as false.
func Bool(doc any, path ...any) (bool, bool) {
	v, ok := Lookup(doc, path...)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "yes", "true", "oui", "1":
			return true, true
		case "no", "false", "non", "0":
			return false, true
		}
	case float64:
		return b != 0, true
	}
	return false, false
}

// FloatPair returns a two-element numeric array at path, e.g. [lat, lng].
func FloatPair(doc any, path ...any) (float64, float64, bool) {
	v, ok := Lookup(doc, path...)
	if !ok {
		return 0, 0, false
	}
	arr, ok := v.([]any)
	if !ok || len(arr) < 2 {
		return 0, 0, false
	}
	a, okA := toFloat(arr[0])
	b, okB := toFloat(arr[1])
	if !okA || !okB {
		return 0, 0, false
	}
	return a, b, true
}

// Decode unmarshals raw JSON into a generic document.
func Decode(data []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
