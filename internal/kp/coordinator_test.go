package kp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeFeed struct {
	mu       sync.Mutex
	forecast FetchResult
	current  FetchResult
	calls    int
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) Forecast(context.Context) FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.forecast
}

func (f *fakeFeed) Current(context.Context) FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeFeed) set(forecast, current FetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecast, f.current = forecast, current
}

type fakeSettings struct {
	mu       sync.Mutex
	loc      *Location
	prefs    *Preferences
	last     time.Time
	failSave error
}

func (s *fakeSettings) LoadLocation(context.Context) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return Location{}, ErrNotFound
	}
	return *s.loc, nil
}

func (s *fakeSettings) SaveLocation(_ context.Context, loc Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.loc = &loc
	return nil
}

func (s *fakeSettings) LoadPreferences(context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil {
		return Preferences{}, ErrNotFound
	}
	return *s.prefs, nil
}

func (s *fakeSettings) SavePreferences(_ context.Context, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.prefs = &p
	return nil
}

func (s *fakeSettings) LastNotification(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

func (s *fakeSettings) SetLastNotification(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = at
	return nil
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recordingSink) Persist(_ context.Context, s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	return nil
}

func newTestCoordinator(t *testing.T, feed Feed, settings SettingsStore, now string, opts ...Option) *Coordinator {
	t.Helper()
	clock := mustTime(t, now)
	opts = append([]Option{WithClock(func() time.Time { return clock })}, opts...)
	return NewCoordinator(feed, settings, opts...)
}

func TestCoordinatorRefreshBuildsViews(t *testing.T) {
	forecast := threeHourly(t, "2026-02-04 00:00:00", "2026-02-11 21:00:00", 3)
	current := []Record{{TimeTag: "2026-02-01 00:00:00", Kp: 1}}
	feed := &fakeFeed{forecast: Succeeded(forecast), current: Succeeded(current)}
	sink := &recordingSink{}

	c := newTestCoordinator(t, feed, &fakeSettings{}, "2026-02-07 10:00:00", WithSinks(sink))
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	res := c.Refresh(context.Background())
	if !res.OK() {
		t.Fatalf("expected successful refresh, got %v", res.Err)
	}

	snap := c.Snapshot()
	if snap.Location != DefaultLocation {
		t.Fatalf("expected default location, got %+v", snap.Location)
	}
	if snap.Today != "2026-02-07" {
		t.Fatalf("expected today 2026-02-07, got %s", snap.Today)
	}
	if len(snap.Days) != 7 {
		t.Fatalf("expected 7 day buckets, got %v", snap.Days.Keys())
	}
	if snap.Current == nil || snap.Current.TimeTag != "2026-02-07 09:00:00" {
		t.Fatalf("unexpected current %+v", snap.Current)
	}
	// Monthly view includes the current-feed-only record on Feb 1st.
	if len(snap.Month) == 0 || snap.Month[0].Day != 1 {
		t.Fatalf("expected month to start on day 1, got %v", snap.Month)
	}
	if snap.Loading || snap.Error != "" {
		t.Fatalf("expected clean state, got loading=%v error=%q", snap.Loading, snap.Error)
	}
	if len(sink.snaps) != 1 {
		t.Fatalf("expected one persisted snapshot, got %d", len(sink.snaps))
	}
}

func TestCoordinatorFailureKeepsLastGoodData(t *testing.T) {
	feed := &fakeFeed{
		forecast: Succeeded(threeHourly(t, "2026-02-06 00:00:00", "2026-02-08 21:00:00", 2)),
		current:  Failed(Retryable, errors.New("boom")),
	}
	c := newTestCoordinator(t, feed, &fakeSettings{}, "2026-02-07 10:00:00")

	if res := c.Refresh(context.Background()); !res.OK() {
		t.Fatalf("current feed failure must not fail the refresh: %v", res.Err)
	}
	before := c.Snapshot()

	feed.set(Failed(Retryable, errors.New("timeout")), Failed(Retryable, errors.New("timeout")))
	res := c.Refresh(context.Background())
	if res.OK() || res.Outcome != Retryable {
		t.Fatalf("expected retryable failure, got %+v", res)
	}

	after := c.Snapshot()
	if after.Error == "" {
		t.Fatalf("expected an error message")
	}
	if after.Loading {
		t.Fatalf("expected loading to be cleared")
	}
	if len(after.Days) != len(before.Days) || after.Current == nil {
		t.Fatalf("expected last good data to stay visible")
	}

	feed.set(Succeeded(nil), Succeeded(nil))
	res = c.Refresh(context.Background())
	if res.OK() || !errors.Is(res.Err, ErrNoRecords) {
		t.Fatalf("expected empty forecast to fail with ErrNoRecords, got %+v", res)
	}
	if len(c.Snapshot().Days) != len(before.Days) {
		t.Fatalf("empty forecast must not wipe data")
	}
}

func TestCoordinatorLocationChangeRebuckets(t *testing.T) {
	feed := &fakeFeed{
		forecast: Succeeded([]Record{
			{TimeTag: "2026-02-06 21:00:00", Kp: 1},
			{TimeTag: "2026-02-06 23:00:00", Kp: 2},
		}),
	}
	settings := &fakeSettings{}
	c := newTestCoordinator(t, feed, settings, "2026-02-07 00:00:00")
	c.Refresh(context.Background())

	if keys := c.Snapshot().Days.Keys(); len(keys) != 2 {
		t.Fatalf("expected two Kyiv days, got %v", keys)
	}

	snap, err := c.OnLocationChanged(context.Background(), Location{DisplayName: "London", TimeZoneID: "Europe/London"})
	if err != nil {
		t.Fatalf("location change: %v", err)
	}
	if keys := snap.Days.Keys(); len(keys) != 1 || keys[0] != "2026-02-06" {
		t.Fatalf("expected one London day, got %v", keys)
	}
	if settings.loc == nil || settings.loc.TimeZoneID != "Europe/London" {
		t.Fatalf("expected location to be persisted")
	}
	if snap.Current == nil || snap.Current.Kp != 2 {
		t.Fatalf("current record must not change with location, got %+v", snap.Current)
	}
}

func TestCoordinatorLocationSaveFailure(t *testing.T) {
	settings := &fakeSettings{failSave: errors.New("disk full")}
	c := newTestCoordinator(t, &fakeFeed{}, settings, "2026-02-07 00:00:00")

	if _, err := c.OnLocationChanged(context.Background(), Location{DisplayName: "X", TimeZoneID: "UTC"}); err == nil {
		t.Fatalf("expected save error")
	}
	if c.Snapshot().Location != DefaultLocation {
		t.Fatalf("failed save must not change the active location")
	}
}

func TestCoordinatorUpdatePreferencesClampsThreshold(t *testing.T) {
	settings := &fakeSettings{}
	c := newTestCoordinator(t, &fakeFeed{}, settings, "2026-02-07 00:00:00")

	threshold := 42
	mode := RefreshBackground
	snap, err := c.UpdatePreferences(context.Background(), PreferencesPatch{
		RefreshMode:           &mode,
		NotificationThreshold: &threshold,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if snap.Prefs.NotificationThreshold != MaxThreshold {
		t.Fatalf("expected threshold clamped to %d, got %d", MaxThreshold, snap.Prefs.NotificationThreshold)
	}
	if snap.Prefs.Theme != ThemeSystem || snap.Prefs.RefreshMode != RefreshBackground {
		t.Fatalf("unexpected prefs %+v", snap.Prefs)
	}
	if settings.prefs == nil || *settings.prefs != snap.Prefs {
		t.Fatalf("expected prefs persisted")
	}
}

func TestCoordinatorSubscribeLatestWins(t *testing.T) {
	c := newTestCoordinator(t, &fakeFeed{}, &fakeSettings{}, "2026-02-07 00:00:00")
	ch, cancel := c.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		c.OnFetchFailed(errors.New("x"))
	}

	got := <-ch
	if got.Version != c.Snapshot().Version {
		t.Fatalf("expected newest version %d, got %d", c.Snapshot().Version, got.Version)
	}
}

func TestCoordinatorConcurrentUpdates(t *testing.T) {
	feed := &fakeFeed{forecast: Succeeded(threeHourly(t, "2026-02-06 00:00:00", "2026-02-08 21:00:00", 2))}
	c := newTestCoordinator(t, feed, &fakeSettings{}, "2026-02-07 10:00:00")
	ch, cancel := c.Subscribe()
	defer cancel()

	zones := []string{"UTC", "Europe/Kyiv", "America/New_York", "Asia/Tokyo"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Refresh(context.Background())
		}()
		go func(i int) {
			defer wg.Done()
			zone := zones[i%len(zones)]
			_, _ = c.OnLocationChanged(context.Background(), Location{DisplayName: zone, TimeZoneID: zone})
		}(i)
	}

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	wg.Wait()
	cancel()
	<-done

	// Whatever won, the views must match the active location.
	snap := c.Snapshot()
	want := GroupByLocalDay(snap.Forecast, snap.Location.TimeZoneID,
		WithReference(snap.Today), WithWindow(DefaultDaysBack, DefaultDaysForward)).Keys()
	got := snap.Days.Keys()
	if len(got) != len(want) {
		t.Fatalf("days %v do not match location %s (want %v)", got, snap.Location.TimeZoneID, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("days %v do not match location %s (want %v)", got, snap.Location.TimeZoneID, want)
		}
	}
}

// pausingSettings blocks the first save after it has been written until
// release is closed.
type pausingSettings struct {
	*fakeSettings

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newPausingSettings() *pausingSettings {
	return &pausingSettings{
		fakeSettings: &fakeSettings{},
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (p *pausingSettings) pause() {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
}

func (p *pausingSettings) SaveLocation(ctx context.Context, loc Location) error {
	err := p.fakeSettings.SaveLocation(ctx, loc)
	p.pause()
	return err
}

func (p *pausingSettings) SavePreferences(ctx context.Context, prefs Preferences) error {
	err := p.fakeSettings.SavePreferences(ctx, prefs)
	p.pause()
	return err
}

// pausingSink blocks its first Persist until release is closed.
type pausingSink struct {
	recordingSink

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *pausingSink) Persist(ctx context.Context, s Snapshot) error {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return p.recordingSink.Persist(ctx, s)
}

func (p *pausingSink) last() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snaps[len(p.snaps)-1]
}

// runOverlapping starts first, waits until it is paused, starts second and
// gives it a chance to run before releasing first.
func runOverlapping(entered <-chan struct{}, release chan struct{}, first, second func()) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		first()
	}()
	<-entered
	go func() {
		defer wg.Done()
		second()
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
}

func TestCoordinatorConcurrentPreferencePatchesPersistBoth(t *testing.T) {
	settings := newPausingSettings()
	c := newTestCoordinator(t, &fakeFeed{}, settings, "2026-02-07 00:00:00")

	dark := ThemeDark
	threshold := 7
	runOverlapping(settings.entered, settings.release,
		func() { _, _ = c.UpdatePreferences(context.Background(), PreferencesPatch{Theme: &dark}) },
		func() {
			_, _ = c.UpdatePreferences(context.Background(), PreferencesPatch{NotificationThreshold: &threshold})
		},
	)

	stored, err := settings.LoadPreferences(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := c.Snapshot().Prefs
	if stored != snap {
		t.Fatalf("stored %+v differs from published %+v", stored, snap)
	}
	if stored.Theme != ThemeDark || stored.NotificationThreshold != 7 {
		t.Fatalf("expected both patches persisted, got %+v", stored)
	}
}

func TestCoordinatorConcurrentLocationChangesPersistLatest(t *testing.T) {
	settings := newPausingSettings()
	c := newTestCoordinator(t, &fakeFeed{}, settings, "2026-02-07 00:00:00")

	a := Location{DisplayName: "A", TimeZoneID: "Europe/London"}
	b := Location{DisplayName: "B", TimeZoneID: "Asia/Tokyo"}
	runOverlapping(settings.entered, settings.release,
		func() { _, _ = c.OnLocationChanged(context.Background(), a) },
		func() { _, _ = c.OnLocationChanged(context.Background(), b) },
	)

	stored, _ := settings.LoadLocation(context.Background())
	if stored != c.Snapshot().Location {
		t.Fatalf("stored %+v differs from published %+v", stored, c.Snapshot().Location)
	}
}

func TestCoordinatorSinkEndsOnLatestSnapshot(t *testing.T) {
	sink := &pausingSink{entered: make(chan struct{}), release: make(chan struct{})}
	c := newTestCoordinator(t, &fakeFeed{}, &fakeSettings{}, "2026-02-07 10:00:00", WithSinks(sink))
	forecast := threeHourly(t, "2026-02-06 00:00:00", "2026-02-08 21:00:00", 2)
	tokyo := Location{DisplayName: "Tokyo", TimeZoneID: "Asia/Tokyo"}

	runOverlapping(sink.entered, sink.release,
		func() { c.OnRecordsFetched(context.Background(), forecast, nil) },
		func() { _, _ = c.OnLocationChanged(context.Background(), tokyo) },
	)

	last := sink.last()
	snap := c.Snapshot()
	if last.Version != snap.Version || last.Location != tokyo {
		t.Fatalf("sink ended on version %d (%s), published version %d (%s)",
			last.Version, last.Location.DisplayName, snap.Version, snap.Location.DisplayName)
	}
}

func TestCoordinatorDefaultLocationOption(t *testing.T) {
	def := Location{DisplayName: "Tokyo", TimeZoneID: "Asia/Tokyo"}
	settings := &fakeSettings{}
	c := newTestCoordinator(t, &fakeFeed{}, settings, "2026-02-07 00:00:00", WithDefaultLocation(def))

	if c.Snapshot().Location != def {
		t.Fatalf("expected configured default, got %+v", c.Snapshot().Location)
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Snapshot().Location != def {
		t.Fatalf("expected default kept after empty load, got %+v", c.Snapshot().Location)
	}

	snap, err := c.OnLocationChanged(context.Background(), Location{DisplayName: "Somewhere"})
	if err != nil {
		t.Fatalf("location change: %v", err)
	}
	if snap.Location.TimeZoneID != "Asia/Tokyo" {
		t.Fatalf("expected missing zone filled from default, got %+v", snap.Location)
	}
	if DefaultLocation.TimeZoneID != "Europe/Kyiv" {
		t.Fatalf("package default must stay untouched")
	}
}
