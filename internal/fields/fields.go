// Package fields provides safe coercion from raw payload values to the
// optional typed fields of the canonical records. Malformed or missing input
// degrades to the documented default instead of failing the whole parse:
// different firmware versions expose different column counts and key sets,
// and a partial payload must still yield a usable record.
package fields

import (
	"strconv"
	"strings"
)

// Row splits a comma-separated value row as found in the JS payload globals.
func Row(raw string) []string {
	return strings.Split(raw, ",")
}

// At returns the value at index i of a raw row, or the empty string when the
// index is out of range.
func At(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// String returns a pointer to the trimmed value, or nil when it is empty.
func String(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Int parses an integer field, returning nil for empty or malformed input.
func Int(raw string) *int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		// Some firmware reports numeric fields with a decimal point.
		if f, ferr := strconv.ParseFloat(trimmed, 64); ferr == nil {
			i := int(f)
			return &i
		}
		return nil
	}
	return &value
}

// Float parses a float field, returning nil for empty or malformed input.
func Float(raw string) *float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &value
}

// ScaledFloat parses a numeric field and divides it by div. Empty or
// malformed input yields nil.
func ScaledFloat(raw string, div float64) *float64 {
	value := Float(raw)
	if value == nil || div == 0 {
		return value
	}
	scaled := *value / div
	return &scaled
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
