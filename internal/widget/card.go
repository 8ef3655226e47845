// Package widget builds and persists the home-screen card record that
// out-of-process readers render without access to the coordinator.
package widget

import (
	"time"

	"github.com/i474232898/kp-index-aggregation/internal/common"
	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// SlotCount is the fixed number of (value, time) pairs on the card.
const SlotCount = 8

const (
	dateLayout = "02-01-2006"
	timeLayout = "15:04"
)

// Slot is one reading of the current local day. Nil fields are absent.
type Slot struct {
	Kp   *float64 `json:"kp"`
	Time *string  `json:"time"`
}

// Present reports whether both halves of the slot are set.
func (s Slot) Present() bool {
	return s.Kp != nil && s.Time != nil
}

// CardState is the full "today" card.
type CardState struct {
	Date         string          `json:"date"` // dd-MM-yyyy
	LocationName string          `json:"locationName"`
	CurrentKp    float64         `json:"currentKp"`
	CurrentTime  string          `json:"currentTime"` // HH:mm
	Category     kp.Category     `json:"category"`
	Slots        [SlotCount]Slot `json:"slots"`
}

// Legacy is the minimal fallback: last value and when it was stored.
type Legacy struct {
	Kp float64   `json:"kp"`
	At time.Time `json:"at"`
}

// BuildCardState assembles the card for current and the records of the
// current local day. Only the first SlotCount records are used.
func BuildCardState(current kp.Record, today []kp.Record, zoneID, locationName string) CardState {
	zone := kp.LoadZone(zoneID)
	state := CardState{
		Date:         kp.FormatLocal(current, zone, dateLayout),
		LocationName: locationName,
		CurrentKp:    current.Kp,
		CurrentTime:  kp.FormatLocal(current, zone, timeLayout),
		Category:     kp.CategoryOf(current.Kp),
	}
	for i := 0; i < SlotCount && i < len(today); i++ {
		v := today[i].Kp
		t := kp.FormatLocal(today[i], zone, timeLayout)
		state.Slots[i] = Slot{Kp: &v, Time: &t}
	}
	return state
}

// FromSnapshot builds the card from a coordinator snapshot. ok is false when
// no current record has been selected yet.
func FromSnapshot(snap kp.Snapshot) (CardState, bool) {
	if snap.Current == nil {
		return CardState{}, false
	}
	today, _ := snap.Days.Get(snap.Today)
	return BuildCardState(*snap.Current, today, snap.Location.TimeZoneID, snap.Location.DisplayName), true
}

// SlotView is a rendered slot.
type SlotView struct {
	Kp       string `json:"kp"`
	Time     string `json:"time"`
	Category string `json:"category,omitempty"`
}

// View is what a widget surface draws.
type View struct {
	Title    string     `json:"title"`
	Date     string     `json:"date"`
	Location string     `json:"location"`
	CircleKp string     `json:"circleKp"`
	KpText   string     `json:"kpText"`
	Time     string     `json:"time"`
	Category string     `json:"category"`
	Slots    []SlotView `json:"slots"`
	Legacy   bool       `json:"legacy,omitempty"`
}

const (
	title       = "Today's level"
	placeholder = "—"
)

// Render turns a card into display strings.
func Render(state CardState) View {
	v := View{
		Title:    title,
		Date:     state.Date,
		Location: state.LocationName,
		CircleKp: common.FormatKp(state.CurrentKp),
		KpText:   "Kp " + common.FormatKp(state.CurrentKp),
		Time:     state.CurrentTime,
		Category: kp.ClampCategory(int(state.Category)).String(),
		Slots:    make([]SlotView, SlotCount),
	}
	for i, slot := range state.Slots {
		if !slot.Present() {
			v.Slots[i] = SlotView{Kp: placeholder, Time: placeholder}
			continue
		}
		v.Slots[i] = SlotView{
			Kp:       common.FormatKp(*slot.Kp),
			Time:     *slot.Time,
			Category: kp.CategoryOf(*slot.Kp).String(),
		}
	}
	return v
}

// RenderLegacy draws the fallback card. A zero At means nothing was stored.
func RenderLegacy(l Legacy, zone *time.Location) View {
	kpText := placeholder
	timeText := ""
	if !l.At.IsZero() {
		kpText = common.FormatKp(l.Kp)
		timeText = l.At.In(zone).Format("02-01-2006 15:04")
	}
	v := View{
		Title:    title,
		CircleKp: kpText,
		KpText:   "Kp " + kpText,
		Time:     timeText,
		Category: kp.CategoryOf(l.Kp).String(),
		Slots:    make([]SlotView, SlotCount),
		Legacy:   true,
	}
	for i := range v.Slots {
		v.Slots[i] = SlotView{Kp: placeholder, Time: placeholder}
	}
	return v
}
