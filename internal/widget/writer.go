package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// Writer persists the card and serves it back to readers. It implements
// kp.SnapshotSink so the coordinator can push fresh snapshots into it.
type Writer struct {
	store CardStore
	now   func() time.Time
}

func NewWriter(store CardStore) *Writer {
	return &Writer{store: store, now: time.Now}
}

// WithClock overrides the clock used for the legacy timestamp.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Persist writes the card derived from snap. Snapshots without a current
// record are skipped.
func (w *Writer) Persist(ctx context.Context, snap kp.Snapshot) error {
	state, ok := FromSnapshot(snap)
	if !ok {
		return nil
	}
	return w.Save(ctx, state)
}

// Save writes a full card. The legacy fields are refreshed in the same write.
func (w *Writer) Save(ctx context.Context, state CardState) error {
	if err := w.store.SaveCard(ctx, Encode(state, w.now())); err != nil {
		return fmt.Errorf("save widget card: %w", err)
	}
	slog.Debug("widget card saved", "date", state.Date, "kp", state.CurrentKp, "location", state.LocationName)
	return nil
}

// SaveLegacy writes only the fallback value and timestamp.
func (w *Writer) SaveLegacy(ctx context.Context, value float64) error {
	if err := w.store.SaveCard(ctx, EncodeLegacy(Legacy{Kp: value, At: w.now()})); err != nil {
		return fmt.Errorf("save widget legacy value: %w", err)
	}
	return nil
}

// Load returns the rendered card, falling back to the legacy fields and then
// to an empty legacy view. zone is used to format the legacy timestamp.
func (w *Writer) Load(ctx context.Context, zone *time.Location) (View, error) {
	fields, err := w.store.LoadCard(ctx)
	if errors.Is(err, kp.ErrNotFound) {
		return RenderLegacy(Legacy{}, zone), nil
	}
	if err != nil {
		return View{}, fmt.Errorf("load widget card: %w", err)
	}
	if state, err := Decode(fields); err == nil {
		return Render(state), nil
	}
	legacy, _ := DecodeLegacy(fields)
	return RenderLegacy(legacy, zone), nil
}
