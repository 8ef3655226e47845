package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
	"github.com/i474232898/kp-index-aggregation/internal/notify"
	"github.com/i474232898/kp-index-aggregation/internal/widget"
)

// Result tells the scheduler what to do after a job run.
type Result int

const (
	Done Result = iota
	Retry
	Failed
)

func (r Result) String() string {
	switch r {
	case Done:
		return "done"
	case Retry:
		return "retry"
	default:
		return "failed"
	}
}

// resultOf maps a failed fetch onto a job result.
func resultOf(r kp.FetchResult) Result {
	if r.Outcome == kp.Permanent {
		return Failed
	}
	return Retry
}

// SyncJob is the periodic background refresh: fetch, rebuild the widget
// card and, when due, send a storm alert.
type SyncJob struct {
	Feed     kp.Feed
	Settings kp.SettingsStore
	Card     *widget.Writer
	Gate     *notify.Gate
	Notifier notify.Notifier
	Now      func() time.Time
	// Default is used when no location has been persisted.
	Default kp.Location
}

// Run executes one sync. It returns early with Done unless the refresh mode
// is background.
func (j *SyncJob) Run(ctx context.Context) (Result, error) {
	prefs, err := loadPreferences(ctx, j.Settings)
	if err != nil {
		return Retry, err
	}
	if prefs.RefreshMode != kp.RefreshBackground {
		slog.Debug("scheduler: sync skipped", "refresh_mode", prefs.RefreshMode)
		return Done, nil
	}

	loc, err := loadLocation(ctx, j.Settings, j.Default)
	if err != nil {
		return Retry, err
	}

	forecast, _ := kp.FetchFeeds(ctx, j.Feed)
	if !forecast.OK() {
		return resultOf(forecast), forecast.Err
	}
	if len(forecast.Records) == 0 {
		return Retry, kp.ErrNoRecords
	}

	current, ok := kp.SelectCurrent(forecast.Records, j.now())
	if !ok {
		return Done, nil
	}

	if j.Card != nil {
		if err := saveCard(ctx, j.Card, forecast.Records, current, loc, j.now()); err != nil {
			slog.Warn("scheduler: sync could not save widget card", "error", err)
		}
	}

	decision, err := j.Gate.Evaluate(ctx, prefs, current.Kp)
	if err != nil {
		return Retry, err
	}
	if decision != notify.Send {
		slog.Debug("scheduler: no alert", "reason", decision, "kp", current.Kp)
		return Done, nil
	}

	at := j.now()
	err = j.Notifier.Notify(ctx, notify.NewAlert(current, loc.DisplayName, at))
	var partial *notify.PartialDeliveryError
	if errors.As(err, &partial) {
		slog.Warn("scheduler: alert partially delivered", "delivered", partial.Delivered, "error", partial.Err)
		err = nil
	}
	if err != nil {
		// Cooldown is only written after a delivered alert.
		return Retry, fmt.Errorf("notify: %w", err)
	}
	if _, err := j.Gate.MarkSent(ctx); err != nil {
		slog.Warn("scheduler: alert sent but cooldown not recorded", "error", err)
	}
	return Done, nil
}

func (j *SyncJob) now() time.Time {
	if j.Now == nil {
		return time.Now()
	}
	return j.Now()
}

// WidgetRefreshJob rebuilds the card for the persisted location. It runs
// once per device unlock.
type WidgetRefreshJob struct {
	Feed     kp.Feed
	Settings kp.SettingsStore
	Card     *widget.Writer
	Now      func() time.Time
	Default  kp.Location
}

func (j *WidgetRefreshJob) Run(ctx context.Context) (Result, error) {
	forecast, _ := kp.FetchFeeds(ctx, j.Feed)
	if !forecast.OK() {
		return resultOf(forecast), forecast.Err
	}

	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}
	current, ok := kp.SelectCurrent(forecast.Records, now)
	if !ok {
		return Done, nil
	}

	loc, err := loadLocation(ctx, j.Settings, j.Default)
	if err != nil {
		return Retry, err
	}
	if err := saveCard(ctx, j.Card, forecast.Records, current, loc, now); err != nil {
		return Retry, err
	}
	return Done, nil
}

// saveCard writes the card for today's local bucket.
func saveCard(ctx context.Context, card *widget.Writer, records []kp.Record, current kp.Record, loc kp.Location, now time.Time) error {
	today := kp.TodayKey(now, kp.LoadZone(loc.TimeZoneID))
	days := kp.GroupByLocalDay(records, loc.TimeZoneID, kp.WithReference(today), kp.WithWindow(0, 0))
	todays, _ := days.Get(today)
	return card.Save(ctx, widget.BuildCardState(current, todays, loc.TimeZoneID, loc.DisplayName))
}

func loadPreferences(ctx context.Context, settings kp.SettingsStore) (kp.Preferences, error) {
	prefs, err := settings.LoadPreferences(ctx)
	if errors.Is(err, kp.ErrNotFound) {
		return kp.DefaultPreferences(), nil
	}
	if err != nil {
		return kp.Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	return prefs, nil
}

func loadLocation(ctx context.Context, settings kp.SettingsStore, def kp.Location) (kp.Location, error) {
	def = def.OrDefault()
	loc, err := settings.LoadLocation(ctx)
	if errors.Is(err, kp.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return kp.Location{}, fmt.Errorf("load location: %w", err)
	}
	return loc.OrDefaultTo(def), nil
}
