package kp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/kp-index-aggregation/internal/metrics"
)

// ErrNoRecords is returned when a successful fetch carried no usable rows.
var ErrNoRecords = errors.New("feed returned no records")

// Coordinator owns the authoritative Snapshot. Every change is a pure
// transform applied under one lock and published as a new value, so
// concurrent refreshes and location changes never interleave partial writes.
type Coordinator struct {
	feed     Feed
	settings SettingsStore
	sinks    []SnapshotSink

	now         func() time.Time
	daysBack    int
	daysForward int
	defaultLoc  Location

	// writeMu orders durable writes with the publish they belong to, so the
	// settings store and the sinks always end on the latest snapshot.
	writeMu sync.Mutex

	mu   sync.Mutex
	snap Snapshot

	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithDayWindow sets how many local days around today are kept in buckets.
func WithDayWindow(back, forward int) Option {
	return func(c *Coordinator) {
		c.daysBack = back
		c.daysForward = forward
	}
}

// WithDefaultLocation sets the location used until one is persisted.
func WithDefaultLocation(loc Location) Option {
	return func(c *Coordinator) { c.defaultLoc = loc.OrDefault() }
}

// WithSinks registers collaborators that persist snapshots built from data.
func WithSinks(sinks ...SnapshotSink) Option {
	return func(c *Coordinator) { c.sinks = append(c.sinks, sinks...) }
}

// NewCoordinator creates a Coordinator with the default location and
// preferences. Call Load to pick up persisted settings.
func NewCoordinator(feed Feed, settings SettingsStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		feed:        feed,
		settings:    settings,
		now:         time.Now,
		daysBack:    DefaultDaysBack,
		daysForward: DefaultDaysForward,
		defaultLoc:  DefaultLocation,
		subs:        make(map[int]chan Snapshot),
		snap: Snapshot{
			Prefs:    DefaultPreferences(),
			Days:     DayBuckets{},
			Month:    []DayAverage{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Location = c.defaultLoc
	return c
}

// Load reads the persisted location and preferences into the snapshot.
// Missing values keep their defaults.
func (c *Coordinator) Load(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	loc, err := c.settings.LoadLocation(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load location: %w", err)
	}
	prefs, err := c.settings.LoadPreferences(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("load preferences: %w", err)
	}
	if prefs == (Preferences{}) {
		prefs = DefaultPreferences()
	}

	c.apply(func(s Snapshot) Snapshot {
		s.Location = loc.OrDefaultTo(c.defaultLoc)
		s.Prefs = prefs
		return c.rederive(s, false)
	})
	return nil
}

// Snapshot returns the latest published snapshot.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe streams every published snapshot, starting with the current one.
// A slow subscriber only ever misses intermediate snapshots, never the newest.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	ch <- c.snap
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subsMu.Unlock()
	c.mu.Unlock()

	cancel := func() {
		c.subsMu.Lock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
		c.subsMu.Unlock()
	}
	return ch, cancel
}

// Refresh fetches both feeds and applies the result. The returned result is
// the forecast outcome so callers can retry on Retryable.
func (c *Coordinator) Refresh(ctx context.Context) FetchResult {
	c.apply(func(s Snapshot) Snapshot {
		s.Loading = true
		s.Error = ""
		return s
	})

	forecast, current := FetchFeeds(ctx, c.feed)
	if !forecast.OK() {
		c.OnFetchFailed(forecast.Err)
		return forecast
	}
	if len(forecast.Records) == 0 {
		c.OnFetchFailed(ErrNoRecords)
		return Failed(Retryable, ErrNoRecords)
	}

	var extra []Record
	if current.OK() {
		extra = current.Records
	}
	c.OnRecordsFetched(ctx, forecast.Records, extra)
	return forecast
}

// OnRecordsFetched replaces the record lists and rebuilds every derived view
// against whatever location is active when the update is applied.
func (c *Coordinator) OnRecordsFetched(ctx context.Context, forecast, current []Record) Snapshot {
	merged := MergeFeeds(forecast, current)
	fetchedAt := c.now().UTC()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	snap := c.apply(func(s Snapshot) Snapshot {
		s.Forecast = forecast
		s.Merged = merged
		s.FetchedAt = fetchedAt
		s.Loading = false
		s.Error = ""
		return c.rederive(s, true)
	})

	if snap.Current != nil {
		metrics.CurrentKp.Set(snap.Current.Kp)
	}
	c.persist(ctx, snap)
	return snap
}

// OnFetchFailed keeps the last good data visible and surfaces a message.
func (c *Coordinator) OnFetchFailed(err error) Snapshot {
	msg := "failed to load Kp data"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	slog.Warn("coordinator: refresh failed", "error", err)

	return c.apply(func(s Snapshot) Snapshot {
		s.Loading = false
		s.Error = msg
		return s
	})
}

// OnLocationChanged persists loc and, when data is loaded, rebuilds buckets
// and monthly averages. The current record does not depend on location.
func (c *Coordinator) OnLocationChanged(ctx context.Context, loc Location) (Snapshot, error) {
	loc = loc.OrDefaultTo(c.defaultLoc)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.settings.SaveLocation(ctx, loc); err != nil {
		return c.Snapshot(), fmt.Errorf("save location: %w", err)
	}

	snap := c.apply(func(s Snapshot) Snapshot {
		s.Location = loc
		return c.rederive(s, false)
	})
	if snap.HasData() {
		c.persist(ctx, snap)
	}
	return snap, nil
}

// PreferencesPatch carries optional preference updates.
type PreferencesPatch struct {
	Theme                 *Theme
	RefreshMode           *RefreshMode
	NotificationsEnabled  *bool
	NotificationThreshold *int
}

// UpdatePreferences persists the patched preferences and republishes.
// The stored and published preferences are the same value.
func (c *Coordinator) UpdatePreferences(ctx context.Context, patch PreferencesPatch) (Snapshot, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := patchPreferences(c.Snapshot().Prefs, patch)
	if err := c.settings.SavePreferences(ctx, next); err != nil {
		return c.Snapshot(), fmt.Errorf("save preferences: %w", err)
	}

	snap := c.apply(func(s Snapshot) Snapshot {
		s.Prefs = next
		return s
	})
	return snap, nil
}

func patchPreferences(p Preferences, patch PreferencesPatch) Preferences {
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.RefreshMode != nil {
		p.RefreshMode = *patch.RefreshMode
	}
	if patch.NotificationsEnabled != nil {
		p.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if patch.NotificationThreshold != nil {
		p.NotificationThreshold = ClampThreshold(*patch.NotificationThreshold)
	}
	return p
}

// rederive rebuilds the location-dependent views from the stored records.
// withCurrent also reselects the current record.
func (c *Coordinator) rederive(s Snapshot, withCurrent bool) Snapshot {
	now := c.now()
	zone := s.Location.TimeZoneID
	s.Today = TodayKey(now, LoadZone(zone))

	if !s.HasData() {
		s.Days = DayBuckets{}
		s.Month = []DayAverage{}
		return s
	}

	s.Days = GroupByLocalDay(s.Forecast, zone,
		WithReference(s.Today),
		WithWindow(c.daysBack, c.daysForward),
	)
	s.Month = DailyAverages(s.Merged, zone, now)

	if withCurrent {
		if cur, ok := SelectCurrent(s.Forecast, now); ok {
			s.Current = &cur
		} else {
			s.Current = nil
		}
	}
	return s
}

// apply runs fn on the current snapshot and publishes its result.
func (c *Coordinator) apply(fn func(Snapshot) Snapshot) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fn(c.snap)
	next.Version = c.snap.Version + 1
	c.snap = next

	c.subsMu.Lock()
	for _, ch := range c.subs {
		offerLatest(ch, next)
	}
	c.subsMu.Unlock()

	metrics.SnapshotPublishes.Inc()
	return next
}

// offerLatest replaces any unread snapshot with s.
func offerLatest(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

func (c *Coordinator) persist(ctx context.Context, snap Snapshot) {
	for _, sink := range c.sinks {
		if err := sink.Persist(ctx, snap); err != nil {
			slog.Error("coordinator: snapshot sink failed", "error", err)
		}
	}
}
