package kp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/i474232898/kp-index-aggregation/internal/metrics"
)

// FetchFeeds requests the forecast and current products concurrently and
// returns once both resolved. A failed current feed never affects the
// forecast result.
func FetchFeeds(ctx context.Context, feed Feed) (forecast, current FetchResult) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		forecast = feed.Forecast(ctx)
	}()
	go func() {
		defer wg.Done()
		current = feed.Current(ctx)
	}()
	wg.Wait()

	metrics.FeedFetches.WithLabelValues("forecast", forecast.Outcome.String()).Inc()
	metrics.FeedFetches.WithLabelValues("current", current.Outcome.String()).Inc()

	if !forecast.OK() {
		slog.Warn("kp: forecast fetch failed", "feed", feed.Name(), "outcome", forecast.Outcome, "error", forecast.Err)
	}
	if !current.OK() {
		// Log and continue; the forecast alone is enough to display.
		slog.Info("kp: current fetch failed", "feed", feed.Name(), "outcome", current.Outcome, "error", current.Err)
	}
	return forecast, current
}
