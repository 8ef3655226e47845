package kp

import "time"

// SelectCurrent picks the record that best represents now: the latest record
// not after now. When every parseable record lies in the future, the record
// with the smallest raw TimeTag is returned instead (string order, not parsed
// time, so unparseable tags also compete).
func SelectCurrent(records []Record, now time.Time) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}

	var (
		best     Record
		bestTime time.Time
		found    bool
	)
	for _, r := range records {
		ts, ok := r.Time()
		if !ok || ts.After(now) {
			continue
		}
		if !found || ts.After(bestTime) {
			best, bestTime, found = r, ts, true
		}
	}
	if found {
		return best, true
	}

	earliest := records[0]
	for _, r := range records[1:] {
		if r.TimeTag < earliest.TimeTag {
			earliest = r
		}
	}
	return earliest, true
}
