package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedMeta is returned when a meta record's content is not a JSON object.
var ErrMalformedMeta = errors.New("malformed meta record")

// Meta is the parsed content of a meta record.
type Meta struct {
	ThinkMs    int64
	TotalMs    int64
	CreatedNew bool
	SessionID  string

	// Fields holds every key of the record, including unknown ones.
	Fields map[string]any
}

// ParseMeta decodes a meta record. Empty content is an empty map.
// Numeric fields accept numbers or numeric strings; negatives clamp to zero.
func ParseMeta(content string) (*Meta, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		content = "{}"
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMeta, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedMeta)
	}

	m := &Meta{
		ThinkMs: millis(fields["think_ms"]),
		TotalMs: millis(fields["total_ms"]),
		Fields:  fields,
	}
	if b, ok := fields["created_new"].(bool); ok {
		m.CreatedNew = b
	}
	if s, ok := fields["session_id"].(string); ok {
		m.SessionID = s
	}
	return m, nil
}

// millis coerces a decoded JSON value to a non-negative millisecond count.
func millis(v any) int64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	return Millis(f)
}

// Millis rounds f to a millisecond count in [0, math.MaxInt64].
// NaN and negative values give 0.
func Millis(f float64) int64 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	f = math.Round(f)
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f >= float64(math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(f)
}
