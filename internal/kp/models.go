package kp

import (
	"time"
)

// Kind is the feed-reported type of a Kp record.
type Kind string

const (
	KindObserved  Kind = "observed"
	KindEstimated Kind = "estimated"
	KindPredicted Kind = "predicted"
)

// ParseKind normalizes a feed type tag. Unknown tags are kept verbatim.
func ParseKind(s string) Kind {
	switch s {
	case "", "observed":
		return KindObserved
	case "estimated":
		return KindEstimated
	case "predicted":
		return KindPredicted
	default:
		return Kind(s)
	}
}

// Scale is the NOAA geomagnetic storm scale attached to a record.
type Scale string

const (
	ScaleNone Scale = ""
	ScaleG1   Scale = "G1"
	ScaleG2   Scale = "G2"
	ScaleG3   Scale = "G3"
	ScaleG4   Scale = "G4"
	ScaleG5   Scale = "G5"
)

// Label returns a human readable description of the scale.
func (s Scale) Label() string {
	switch s {
	case ScaleG1:
		return "G1 (Minor)"
	case ScaleG2:
		return "G2 (Moderate)"
	case ScaleG3:
		return "G3 (Strong)"
	case ScaleG4:
		return "G4 (Severe)"
	case ScaleG5:
		return "G5 (Extreme)"
	default:
		return ""
	}
}

// Record is one Kp observation or forecast on the 3-hour grid.
// TimeTag is kept raw ("2006-01-02 15:04:05", UTC) so that records with an
// unparseable tag still carry a best-effort key.
type Record struct {
	TimeTag string  `json:"timeTag"`
	Kp      float64 `json:"kp"`
	Kind    Kind    `json:"kind"`
	Scale   Scale   `json:"scale,omitempty"`
}

// Time parses the record's UTC timestamp. ok is false for unparseable tags.
func (r Record) Time() (time.Time, bool) {
	ts, err := time.ParseInLocation(timeTagLayout, truncate(r.TimeTag, len(timeTagLayout)), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Location is the place whose timezone drives all local-day computations.
type Location struct {
	DisplayName string `json:"displayName" validate:"required,max=256"`
	TimeZoneID  string `json:"timeZoneId" validate:"required,timezone"`
}

// DefaultLocation is used when nothing has been persisted yet and no other
// default is configured.
var DefaultLocation = Location{
	DisplayName: "Київ, Україна",
	TimeZoneID:  "Europe/Kyiv",
}

// OrDefault fills missing fields from DefaultLocation.
func (l Location) OrDefault() Location {
	return l.OrDefaultTo(DefaultLocation)
}

// OrDefaultTo fills missing fields from def.
func (l Location) OrDefaultTo(def Location) Location {
	if l.DisplayName == "" {
		l.DisplayName = def.DisplayName
	}
	if l.TimeZoneID == "" {
		l.TimeZoneID = def.TimeZoneID
	}
	return l
}

// Theme is the UI theme preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// RefreshMode controls whether background jobs fetch data.
type RefreshMode string

const (
	RefreshOnOpen     RefreshMode = "on_open"
	RefreshBackground RefreshMode = "background"
)

// Notification threshold bounds and default.
const (
	MinThreshold     = 1
	MaxThreshold     = 9
	DefaultThreshold = 5
)

// ClampThreshold keeps a notification threshold within 1..9.
func ClampThreshold(v int) int {
	if v < MinThreshold {
		return MinThreshold
	}
	if v > MaxThreshold {
		return MaxThreshold
	}
	return v
}

// Preferences are the persisted user settings besides the location.
type Preferences struct {
	Theme                 Theme       `json:"theme"`
	RefreshMode           RefreshMode `json:"refreshMode"`
	NotificationsEnabled  bool        `json:"notificationsEnabled"`
	NotificationThreshold int         `json:"notificationThreshold"`
}

// DefaultPreferences mirrors a fresh install.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:                 ThemeSystem,
		RefreshMode:           RefreshOnOpen,
		NotificationsEnabled:  false,
		NotificationThreshold: DefaultThreshold,
	}
}

// DayAverage is one point of the monthly chart.
type DayAverage struct {
	Day     int     `json:"day"`
	Average float64 `json:"average"`
}

// Snapshot is the single derived display state shared by every surface.
// It is replaced as a whole on every update.
type Snapshot struct {
	Version   uint64       `json:"version"`
	Location  Location     `json:"location"`
	Prefs     Preferences  `json:"preferences"`
	Today     string       `json:"today,omitempty"`
	Current   *Record      `json:"current,omitempty"`
	Days      DayBuckets   `json:"days"`
	Month     []DayAverage `json:"month"`
	Loading   bool         `json:"loading"`
	Error     string       `json:"error,omitempty"`
	FetchedAt time.Time    `json:"fetchedAt,omitempty"` // always UTC

	// Forecast is the last successful forecast feed; Merged adds the
	// current-feed records the forecast does not cover.
	Forecast []Record `json:"-"`
	Merged   []Record `json:"-"`
}

// HasData reports whether at least one successful fetch has been applied.
func (s Snapshot) HasData() bool {
	return len(s.Forecast) > 0
}
