// Package notify decides when a geomagnetic storm alert is due and delivers
// it to one or more sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/kp-index-aggregation/internal/common"
	"github.com/i474232898/kp-index-aggregation/internal/kp"
	"github.com/i474232898/kp-index-aggregation/internal/metrics"
)

// Alert is one storm notification.
type Alert struct {
	ID       string      `json:"id"`
	Kp       float64     `json:"kp"`
	Category string      `json:"category"`
	Location string      `json:"location"`
	TimeTag  string      `json:"timeTag"`
	SentAt   time.Time   `json:"sentAt"`
	Title    string      `json:"title"`
	Body     string      `json:"body"`
	Scale    kp.Scale    `json:"scale,omitempty"`
	Level    kp.Category `json:"level"`
}

// NewAlert builds the alert for the current record.
func NewAlert(current kp.Record, location string, at time.Time) Alert {
	category := kp.CategoryOf(current.Kp)
	return Alert{
		ID:       uuid.NewString(),
		Kp:       current.Kp,
		Category: category.String(),
		Location: location,
		TimeTag:  current.TimeTag,
		SentAt:   at.UTC(),
		Title:    "Magnetic storm",
		Body:     fmt.Sprintf("Kp index reached %s", common.FormatKp(current.Kp)),
		Scale:    current.Scale,
		Level:    category,
	}
}

// Notifier delivers alerts.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log. It is always available.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(_ context.Context, alert Alert) error {
	slog.Warn("notify: storm alert",
		"id", alert.ID,
		"kp", common.FormatKp(alert.Kp),
		"category", alert.Category,
		"location", alert.Location,
		"time_tag", alert.TimeTag,
	)
	return nil
}

// PartialDeliveryError reports an alert that reached some sinks but not all.
type PartialDeliveryError struct {
	Delivered []string
	Err       error
}

func (e *PartialDeliveryError) Error() string {
	return fmt.Sprintf("delivered to %s only: %v", strings.Join(e.Delivered, ","), e.Err)
}

func (e *PartialDeliveryError) Unwrap() error { return e.Err }

// Fanout sends to every notifier. When some succeed and others fail the
// error is a *PartialDeliveryError; when all fail it is their joined errors.
type Fanout []Notifier

func (f Fanout) Name() string { return "fanout" }

func (f Fanout) Notify(ctx context.Context, alert Alert) error {
	var (
		errs      []error
		delivered []string
	)
	for _, n := range f {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		delivered = append(delivered, n.Name())
		metrics.NotificationsSent.WithLabelValues(n.Name()).Inc()
	}
	err := errors.Join(errs...)
	if err != nil && len(delivered) > 0 {
		return &PartialDeliveryError{Delivered: delivered, Err: err}
	}
	return err
}
