package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// metersPerMile converts metric provider values to miles.
const metersPerMile = 1609.34

// ParseDistance extracts a distance in miles from the loose shapes upstream
// providers return: a raw number (miles), an object with a "miles" field, an
// object with a metric "value" in meters, or free text with a leading numeric
// token. The second return value is false when no distance can be extracted.
func ParseDistance(v any) (float64, bool) {
	switch d := v.(type) {
	case nil:
		return 0, false
	case float64:
		return d, d > 0
	case float32:
		return float64(d), d > 0
	case int:
		return float64(d), d > 0
	case int64:
		return float64(d), d > 0
	case json.Number:
		f, err := d.Float64()
		return f, err == nil && f > 0
	case string:
		return parseDistanceText(d)
	case map[string]any:
		if m, ok := d["miles"]; ok {
			return ParseDistance(m)
		}
		if m, ok := d["value"]; ok {
			meters, ok := ParseDistance(m)
			if !ok {
				return 0, false
			}
			return meters / metersPerMile, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// parseDistanceText reads a leading numeric token, tolerating surrounding
// whitespace and trailing units ("12.3 miles").
func parseDistanceText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
