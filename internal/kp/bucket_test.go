package kp

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

// threeHourly returns records every 3h from start (UTC) through end inclusive.
func threeHourly(t *testing.T, start, end string, kp float64) []Record {
	t.Helper()
	from, err := time.Parse(timeTagLayout, start)
	if err != nil {
		t.Fatalf("bad start: %v", err)
	}
	to, err := time.Parse(timeTagLayout, end)
	if err != nil {
		t.Fatalf("bad end: %v", err)
	}

	var out []Record
	for ts := from; !ts.After(to); ts = ts.Add(3 * time.Hour) {
		out = append(out, Record{TimeTag: ts.Format(timeTagLayout), Kp: kp, Kind: KindPredicted})
	}
	return out
}

func TestGroupByLocalDayKyivWindow(t *testing.T) {
	records := threeHourly(t, "2026-02-04 00:00:00", "2026-02-11 21:00:00", 3.0)
	records[0].Kp = 0.67
	records[0].Kind = KindObserved

	days := GroupByLocalDay(records, "Europe/Kyiv", WithReference("2026-02-07"), WithWindow(4, 3))

	want := []string{
		"2026-02-04", "2026-02-05", "2026-02-06", "2026-02-07",
		"2026-02-08", "2026-02-09", "2026-02-10",
	}
	if got := days.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected keys %v, got %v", want, got)
	}

	// 2026-02-10 local covers 2026-02-09 22:00 UTC through 2026-02-10 21:00 UTC.
	recs, ok := days.Get("2026-02-10")
	if !ok {
		t.Fatalf("expected bucket for 2026-02-10")
	}
	if len(recs) != 8 {
		t.Fatalf("expected 8 records on 2026-02-10, got %d", len(recs))
	}
	if recs[0].TimeTag != "2026-02-10 00:00:00" {
		t.Fatalf("expected first record 2026-02-10 00:00:00, got %s", recs[0].TimeTag)
	}
}

func TestGroupByLocalDayShiftsAcrossMidnight(t *testing.T) {
	records := []Record{
		{TimeTag: "2026-02-06 21:00:00", Kp: 2},
		{TimeTag: "2026-02-06 22:00:00", Kp: 3},
	}

	days := GroupByLocalDay(records, "Europe/Kyiv")

	if got := days.Keys(); !reflect.DeepEqual(got, []string{"2026-02-06", "2026-02-07"}) {
		t.Fatalf("unexpected keys %v", got)
	}
}

func TestGroupByLocalDayEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		opts    []GroupOption
		want    []string
	}{
		{
			name: "empty input",
			want: []string{},
		},
		{
			name:    "unparseable tag falls back to raw prefix",
			records: []Record{{TimeTag: "2026-03-01Tgarbage", Kp: 1}},
			want:    []string{"2026-03-01"},
		},
		{
			name: "no reference returns every day",
			records: []Record{
				{TimeTag: "2026-01-01 12:00:00"},
				{TimeTag: "2026-06-01 12:00:00"},
			},
			want: []string{"2026-01-01", "2026-06-01"},
		},
		{
			name: "invalid reference disables the window",
			records: []Record{
				{TimeTag: "2026-01-01 12:00:00"},
				{TimeTag: "2026-06-01 12:00:00"},
			},
			opts: []GroupOption{WithReference("not-a-date")},
			want: []string{"2026-01-01", "2026-06-01"},
		},
		{
			name: "window drops days outside range",
			records: []Record{
				{TimeTag: "2026-01-01 12:00:00"},
				{TimeTag: "2026-01-10 12:00:00"},
				{TimeTag: "2026-01-20 12:00:00"},
			},
			opts: []GroupOption{WithReference("2026-01-10"), WithWindow(1, 1)},
			want: []string{"2026-01-10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := GroupByLocalDay(tt.records, "UTC", tt.opts...)
			if got := days.Keys(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGroupByLocalDayKeepsInputOrderWithinDay(t *testing.T) {
	records := []Record{
		{TimeTag: "2026-01-01 09:00:00", Kp: 1},
		{TimeTag: "2026-01-01 03:00:00", Kp: 2},
		{TimeTag: "2026-01-01 06:00:00", Kp: 3},
	}

	recs, _ := GroupByLocalDay(records, "UTC").Get("2026-01-01")

	var got []float64
	for _, r := range recs {
		got = append(got, r.Kp)
	}
	if fmt.Sprint(got) != "[1 2 3]" {
		t.Fatalf("expected input order [1 2 3], got %v", got)
	}
}

func TestUnknownZoneFallsBackToUTC(t *testing.T) {
	records := []Record{{TimeTag: "2026-01-01 23:00:00"}}

	days := GroupByLocalDay(records, "Mars/Olympus_Mons")

	if got := days.Keys(); !reflect.DeepEqual(got, []string{"2026-01-01"}) {
		t.Fatalf("expected UTC bucketing, got %v", got)
	}
}
