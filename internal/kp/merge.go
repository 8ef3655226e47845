package kp

// MergeFeeds appends current-feed records whose truncated timestamp is not
// already covered by the forecast feed. Forecast entries win on collision.
func MergeFeeds(forecast, current []Record) []Record {
	seen := make(map[string]struct{}, len(forecast))
	for _, r := range forecast {
		seen[truncate(r.TimeTag, len(timeTagLayout))] = struct{}{}
	}

	merged := make([]Record, 0, len(forecast)+len(current))
	merged = append(merged, forecast...)
	for _, r := range current {
		if _, dup := seen[truncate(r.TimeTag, len(timeTagLayout))]; dup {
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
