package kp

import (
	"log/slog"
	"sync"
	"time"
)

const (
	timeTagLayout = "2006-01-02 15:04:05"
	dateKeyLayout = "2006-01-02"
)

var (
	zoneMu    sync.RWMutex
	zoneCache = make(map[string]*time.Location)
)

// LoadZone resolves an IANA zone id. Unknown ids resolve to UTC so that a
// bad persisted value never breaks bucketing.
func LoadZone(id string) *time.Location {
	if id == "" {
		id = DefaultLocation.TimeZoneID
	}

	zoneMu.RLock()
	loc, ok := zoneCache[id]
	zoneMu.RUnlock()
	if ok {
		return loc
	}

	loc, err := time.LoadLocation(id)
	if err != nil {
		slog.Warn("kp: unknown time zone, using UTC", "zone", id, "error", err)
		loc = time.UTC
	}

	zoneMu.Lock()
	zoneCache[id] = loc
	zoneMu.Unlock()
	return loc
}

// ValidZone reports whether id is a loadable IANA zone.
func ValidZone(id string) bool {
	if id == "" {
		return false
	}
	_, err := time.LoadLocation(id)
	return err == nil
}

// LocalDateKey returns the local YYYY-MM-DD of a record in zone. Records
// whose tag does not parse fall back to the first 10 characters of the tag.
func LocalDateKey(r Record, zone *time.Location) string {
	ts, ok := r.Time()
	if !ok {
		return truncate(r.TimeTag, len(dateKeyLayout))
	}
	return ts.In(zone).Format(dateKeyLayout)
}

// TodayKey is the local calendar date of now in zone.
func TodayKey(now time.Time, zone *time.Location) string {
	return now.In(zone).Format(dateKeyLayout)
}

// FormatLocal renders a record's timestamp with a Go layout in zone. The raw
// tag is returned when it does not parse.
func FormatLocal(r Record, zone *time.Location, layout string) string {
	ts, ok := r.Time()
	if !ok {
		return r.TimeTag
	}
	return ts.In(zone).Format(layout)
}

// shiftDateKey moves a YYYY-MM-DD key by days on the calendar.
func shiftDateKey(key string, days int) (string, bool) {
	d, err := time.Parse(dateKeyLayout, key)
	if err != nil {
		return "", false
	}
	return d.AddDate(0, 0, days).Format(dateKeyLayout), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
