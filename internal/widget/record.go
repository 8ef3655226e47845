package widget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// FormatVersion is written under KeyVersion. Readers treat any other value
// as "no card" and fall back to the legacy fields.
const FormatVersion = "1"

// Flat record keys. Every key is always written, absent values use the
// sentinels below.
const (
	KeyVersion     = "v"
	KeyDate        = "date"
	KeyLocation    = "location"
	KeyKp          = "kp"
	KeyTime        = "time"
	KeyCategory    = "category"
	KeyUpdatedAtMs = "updated_at_ms"

	// Kp values are never negative, so any negative stored value reads as
	// absent: a slot is dropped and a negative current value means no card.
	absentKp   = "-1"
	absentTime = ""
)

// SlotKpKey and SlotTimeKey name the per-slot fields.
func SlotKpKey(i int) string   { return "slot_kp_" + strconv.Itoa(i) }
func SlotTimeKey(i int) string { return "slot_time_" + strconv.Itoa(i) }

// ErrNoCard is returned when the store holds no readable full card.
var ErrNoCard = errors.New("widget: no card state")

// CardStore persists the flat record. SaveCard merges fields into the stored
// record; LoadCard returns kp.ErrNotFound when nothing was ever written.
type CardStore interface {
	SaveCard(ctx context.Context, fields map[string]string) error
	LoadCard(ctx context.Context) (map[string]string, error)
}

// Encode flattens a card. updatedAt feeds the legacy fields, which are kept
// in sync with the current value.
func Encode(state CardState, updatedAt time.Time) map[string]string {
	fields := map[string]string{
		KeyVersion:     FormatVersion,
		KeyDate:        state.Date,
		KeyLocation:    state.LocationName,
		KeyKp:          formatFloat(state.CurrentKp),
		KeyTime:        state.CurrentTime,
		KeyCategory:    strconv.Itoa(int(kp.ClampCategory(int(state.Category)))),
		KeyUpdatedAtMs: strconv.FormatInt(updatedAt.UnixMilli(), 10),
	}
	for i, slot := range state.Slots {
		fields[SlotKpKey(i)] = absentKp
		fields[SlotTimeKey(i)] = absentTime
		if slot.Kp != nil {
			fields[SlotKpKey(i)] = formatFloat(*slot.Kp)
		}
		if slot.Time != nil {
			fields[SlotTimeKey(i)] = *slot.Time
		}
	}
	return fields
}

// EncodeLegacy writes only the fallback fields.
func EncodeLegacy(l Legacy) map[string]string {
	return map[string]string{
		KeyKp:          formatFloat(l.Kp),
		KeyUpdatedAtMs: strconv.FormatInt(l.At.UnixMilli(), 10),
	}
}

// Decode reads a full card. A missing version or date, or a negative current
// value, yields ErrNoCard.
func Decode(fields map[string]string) (CardState, error) {
	if fields[KeyVersion] != FormatVersion || fields[KeyDate] == "" {
		return CardState{}, ErrNoCard
	}
	current, err := strconv.ParseFloat(fields[KeyKp], 64)
	if err != nil {
		return CardState{}, fmt.Errorf("%w: kp: %v", ErrNoCard, err)
	}
	if current < 0 {
		return CardState{}, ErrNoCard
	}
	category, err := strconv.Atoi(fields[KeyCategory])
	if err != nil {
		category = int(kp.CategoryOf(current))
	}

	state := CardState{
		Date:         fields[KeyDate],
		LocationName: fields[KeyLocation],
		CurrentKp:    current,
		CurrentTime:  fields[KeyTime],
		Category:     kp.ClampCategory(category),
	}
	for i := range state.Slots {
		if raw, ok := fields[SlotKpKey(i)]; ok && raw != absentKp {
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
				state.Slots[i].Kp = &v
			}
		}
		if raw := fields[SlotTimeKey(i)]; raw != absentTime {
			t := raw
			state.Slots[i].Time = &t
		}
	}
	return state, nil
}

// DecodeLegacy reads the fallback fields. ok is false when they were never
// written.
func DecodeLegacy(fields map[string]string) (Legacy, bool) {
	raw, ok := fields[KeyKp]
	if !ok {
		return Legacy{}, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return Legacy{}, false
	}
	ms, err := strconv.ParseInt(fields[KeyUpdatedAtMs], 10, 64)
	if err != nil {
		return Legacy{}, false
	}
	return Legacy{Kp: v, At: time.UnixMilli(ms).UTC()}, true
}

// formatFloat uses the shortest representation that parses back to the same
// value.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
