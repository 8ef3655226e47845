package providers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// NOAA products come either as an array of arrays whose first row is a header
// (["time_tag","kp","observed","noaa_scale"], ["2026-02-04 00:00:00","0.67","observed",null], ...)
// or, in the newer layout, as an array of objects keyed by the same names.
// Short or malformed bodies yield an empty list.

// ParseForecast parses the planetary K-index forecast product.
func ParseForecast(body []byte) ([]kp.Record, error) {
	return parseProduct(body, true)
}

// ParseCurrent parses the planetary K-index observation product.
func ParseCurrent(body []byte) ([]kp.Record, error) {
	return parseProduct(body, false)
}

func parseProduct(body []byte, forecast bool) ([]kp.Record, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode noaa product: %w", err)
	}
	if len(rows) == 0 {
		return []kp.Record{}, nil
	}

	trimmed := strings.TrimSpace(string(rows[0]))
	if strings.HasPrefix(trimmed, "{") {
		return parseObjectRows(rows, forecast), nil
	}
	return parseArrayRows(rows, forecast), nil
}

func parseArrayRows(rows []json.RawMessage, forecast bool) []kp.Record {
	out := make([]kp.Record, 0, len(rows))
	if len(rows) < 2 {
		return out
	}
	minCols := 2
	if forecast {
		minCols = 4
	}

	// Row 0 is the header.
	for _, raw := range rows[1:] {
		var row []interface{}
		if err := json.Unmarshal(raw, &row); err != nil || len(row) < minCols {
			continue
		}

		rec := kp.Record{
			TimeTag: normalizeTimeTag(stringOf(row[0])),
			Kp:      parseKpValue(row[1]),
			Kind:    kp.KindObserved,
		}
		if forecast {
			if s, ok := row[2].(string); ok {
				rec.Kind = kp.ParseKind(s)
			}
			if s, ok := row[3].(string); ok {
				rec.Scale = kp.Scale(strings.TrimSpace(s))
			}
		}
		out = append(out, rec)
	}
	return out
}

func parseObjectRows(rows []json.RawMessage, forecast bool) []kp.Record {
	out := make([]kp.Record, 0, len(rows))
	for _, raw := range rows {
		var obj map[string]interface{}
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		tag, ok := obj["time_tag"]
		if !ok {
			continue
		}
		value, ok := obj["kp"]
		if !ok {
			value = obj["Kp"]
		}

		rec := kp.Record{
			TimeTag: normalizeTimeTag(stringOf(tag)),
			Kp:      parseKpValue(value),
			Kind:    kp.KindObserved,
		}
		if forecast {
			if s, ok := obj["observed"].(string); ok {
				rec.Kind = kp.ParseKind(s)
			}
			if s, ok := obj["noaa_scale"].(string); ok {
				rec.Scale = kp.Scale(strings.TrimSpace(s))
			}
		}
		out = append(out, rec)
	}
	return out
}

// parseKpValue accepts numbers and numeric strings; anything else is 0.
func parseKpValue(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func stringOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// normalizeTimeTag strips milliseconds and the ISO 'T' separator.
func normalizeTimeTag(tag string) string {
	tag = strings.Replace(tag, ".000", "", 1)
	if len(tag) >= 19 && tag[10] == 'T' {
		tag = tag[:10] + " " + tag[11:]
	}
	return tag
}
