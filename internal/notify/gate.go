package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// DefaultCooldown is the minimum spacing between two alerts.
const DefaultCooldown = 6 * time.Hour

// Decision is the outcome of evaluating a current value against the
// notification preferences.
type Decision int

const (
	Send Decision = iota
	SkipDisabled
	SkipRefreshMode
	SkipBelowThreshold
	SkipCooldown
)

func (d Decision) String() string {
	switch d {
	case Send:
		return "send"
	case SkipDisabled:
		return "disabled"
	case SkipRefreshMode:
		return "refresh_mode"
	case SkipBelowThreshold:
		return "below_threshold"
	default:
		return "cooldown"
	}
}

// Gate enforces the threshold and the cooldown. The cooldown is read before
// sending and written after; two concurrent runs may both send.
type Gate struct {
	settings kp.SettingsStore
	cooldown time.Duration
	now      func() time.Time
}

func NewGate(settings kp.SettingsStore, cooldown time.Duration, now func() time.Time) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Gate{settings: settings, cooldown: cooldown, now: now}
}

// Evaluate decides whether value warrants an alert under prefs.
func (g *Gate) Evaluate(ctx context.Context, prefs kp.Preferences, value float64) (Decision, error) {
	if prefs.RefreshMode != kp.RefreshBackground {
		return SkipRefreshMode, nil
	}
	if !prefs.NotificationsEnabled {
		return SkipDisabled, nil
	}
	if value < float64(kp.ClampThreshold(prefs.NotificationThreshold)) {
		return SkipBelowThreshold, nil
	}

	last, err := g.settings.LastNotification(ctx)
	if err != nil {
		return SkipCooldown, fmt.Errorf("read last notification: %w", err)
	}
	if !last.IsZero() && g.now().Sub(last) < g.cooldown {
		return SkipCooldown, nil
	}
	return Send, nil
}

// MarkSent records the alert time and returns it.
func (g *Gate) MarkSent(ctx context.Context) (time.Time, error) {
	at := g.now()
	if err := g.settings.SetLastNotification(ctx, at); err != nil {
		return at, fmt.Errorf("write last notification: %w", err)
	}
	return at, nil
}
