package kp

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DailyAverages computes one average per local day of the calendar month that
// contains now in zoneID.
//
// Zero readings are ignored when a day also has positive ones; a day made only
// of zeros averages to 0. Days without records are absent.
func DailyAverages(records []Record, zoneID string, now time.Time) []DayAverage {
	zone := LoadZone(zoneID)
	localNow := now.In(zone)
	year, month := localNow.Year(), int(localNow.Month())

	byDay := make(map[int][]float64)
	for _, r := range records {
		y, m, d, ok := splitDateKey(LocalDateKey(r, zone))
		if !ok || y != year || m != month || d < 1 || d > 31 {
			continue
		}
		byDay[d] = append(byDay[d], r.Kp)
	}

	out := make([]DayAverage, 0, len(byDay))
	for day, values := range byDay {
		out = append(out, DayAverage{Day: day, Average: averagePositive(values)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func averagePositive(values []float64) float64 {
	var (
		sumPos float64
		nPos   int
		sumAll float64
	)
	for _, v := range values {
		sumAll += v
		if v > 0 {
			sumPos += v
			nPos++
		}
	}
	if nPos > 0 {
		return sumPos / float64(nPos)
	}
	return sumAll / float64(len(values))
}

func splitDateKey(key string) (year, month, day int, ok bool) {
	parts := strings.Split(key, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err error
	if year, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, false
	}
	if month, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, false
	}
	if day, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, false
	}
	return year, month, day, true
}
