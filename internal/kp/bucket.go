package kp

import (
	"sort"
)

// Default window around the reference day.
const (
	DefaultDaysBack    = 4
	DefaultDaysForward = 3
)

// DayBucket holds the records whose local date equals Date, in input order.
type DayBucket struct {
	Date    string   `json:"date"`
	Records []Record `json:"records"`
}

// DayBuckets is ordered by Date ascending.
type DayBuckets []DayBucket

// Keys returns the bucket dates in order.
func (b DayBuckets) Keys() []string {
	keys := make([]string, len(b))
	for i, day := range b {
		keys[i] = day.Date
	}
	return keys
}

// Get returns the records for a date key.
func (b DayBuckets) Get(date string) ([]Record, bool) {
	i := sort.Search(len(b), func(i int) bool { return b[i].Date >= date })
	if i < len(b) && b[i].Date == date {
		return b[i].Records, true
	}
	return nil, false
}

type groupOptions struct {
	reference   string
	daysBack    int
	daysForward int
}

// GroupOption customizes GroupByLocalDay.
type GroupOption func(*groupOptions)

// WithReference restricts output to the window around a YYYY-MM-DD day.
func WithReference(date string) GroupOption {
	return func(o *groupOptions) { o.reference = date }
}

// WithWindow overrides the default 4 days back / 3 days forward.
func WithWindow(back, forward int) GroupOption {
	return func(o *groupOptions) {
		o.daysBack = back
		o.daysForward = forward
	}
}

// GroupByLocalDay buckets records by their local calendar date in zoneID.
//
// Without a reference day every key present is returned. With one, only keys
// within [reference-daysBack, reference+daysForward] survive. Keys are
// compared as strings, which is chronological for the fixed-width format.
// An unparseable reference disables the window.
func GroupByLocalDay(records []Record, zoneID string, opts ...GroupOption) DayBuckets {
	o := groupOptions{daysBack: DefaultDaysBack, daysForward: DefaultDaysForward}
	for _, opt := range opts {
		opt(&o)
	}

	if len(records) == 0 {
		return DayBuckets{}
	}

	zone := LoadZone(zoneID)
	byDay := make(map[string][]Record)
	for _, r := range records {
		key := LocalDateKey(r, zone)
		byDay[key] = append(byDay[key], r)
	}

	inWindow := func(string) bool { return true }
	if o.reference != "" {
		start, okStart := shiftDateKey(o.reference, -o.daysBack)
		end, okEnd := shiftDateKey(o.reference, o.daysForward)
		if okStart && okEnd {
			inWindow = func(key string) bool { return key >= start && key <= end }
		}
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		if inWindow(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make(DayBuckets, 0, len(keys))
	for _, k := range keys {
		out = append(out, DayBucket{Date: k, Records: byDay[k]})
	}
	return out
}
