package kp

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies a fetch so callers can decide whether to retry.
type Outcome int

const (
	Success Outcome = iota
	Retryable
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	default:
		return "permanent"
	}
}

// FetchResult is what a Feed returns instead of panicking or throwing.
type FetchResult struct {
	Records []Record
	Outcome Outcome
	Err     error
}

// OK reports a successful fetch.
func (r FetchResult) OK() bool {
	return r.Outcome == Success && r.Err == nil
}

// Succeeded wraps records as a successful result.
func Succeeded(records []Record) FetchResult {
	return FetchResult{Records: records, Outcome: Success}
}

// Failed wraps err with an outcome.
func Failed(outcome Outcome, err error) FetchResult {
	if outcome == Success {
		outcome = Permanent
	}
	return FetchResult{Outcome: outcome, Err: err}
}

// Feed abstracts the NOAA Kp products.
type Feed interface {
	Name() string
	// Forecast returns the 3-hour forecast product (observed, estimated and
	// predicted rows with scale tags).
	Forecast(ctx context.Context) FetchResult
	// Current returns the short-horizon observed product.
	Current(ctx context.Context) FetchResult
}

// Geocoder resolves free text into candidate locations.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Location, error)
}

// ErrNotFound is returned by stores when a key has never been written.
var ErrNotFound = errors.New("not found")

// SettingsStore is the durable key-value collaborator holding user settings.
type SettingsStore interface {
	LoadLocation(ctx context.Context) (Location, error)
	SaveLocation(ctx context.Context, loc Location) error
	LoadPreferences(ctx context.Context) (Preferences, error)
	SavePreferences(ctx context.Context, prefs Preferences) error
	LastNotification(ctx context.Context) (time.Time, error)
	SetLastNotification(ctx context.Context, at time.Time) error
}

// SnapshotSink receives every snapshot built from fresh data, e.g. to persist
// the widget card record.
type SnapshotSink interface {
	Persist(ctx context.Context, snap Snapshot) error
}
