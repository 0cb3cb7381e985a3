package extract

import (
	"strconv"
	"strings"
	"time"
)

// record is one untrusted keyed object from the model output. Every field may
// be absent or of the wrong type, so all access goes through explicit
// coercion helpers rather than ambient type assertions.
type record map[string]interface{}

// asRecord returns the element as a record, or nil when the model produced a
// scalar, null, or anything else that is not a keyed object.
func asRecord(v interface{}) record {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	return m
}

// stringOr returns the trimmed string at key, or fallback when the field is
// missing, null, or not a string.
func (r record) stringOr(key, fallback string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

// numberOr returns the numeric value at key, or fallback when the field is
// missing or not a number. Numeric strings are accepted because models
// routinely quote amounts.
func (r record) numberOr(key string, fallback float64) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}

// dateLayouts are the formats accepted for transaction dates. The prompt asks
// for ISO-8601 dates but models occasionally return full timestamps.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// dateOr parses the date at key, returning the zero time when the field is
// missing or unparseable.
func (r record) dateOr(key string) time.Time {
	s := r.stringOr(key, "")
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// subRecord returns the keyed object at key, or nil.
func (r record) subRecord(key string) record {
	v, ok := r[key]
	if !ok {
		return nil
	}
	return asRecord(v)
}
