package providers

import (
	"strings"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// countryZones is an approximate ISO 3166-1 alpha-2 to IANA zone table. It
// picks one representative zone per country and is not a real tz lookup.
var countryZones = map[string]string{
	"ua": "Europe/Kyiv",
	"pl": "Europe/Warsaw",
	"de": "Europe/Berlin",
	"fr": "Europe/Paris",
	"gb": "Europe/London",
	"uk": "Europe/London",
	"it": "Europe/Rome",
	"es": "Europe/Madrid",
	"us": "America/New_York",
	"ca": "America/Toronto",
	"ru": "Europe/Moscow",
	"by": "Europe/Minsk",
	"md": "Europe/Chisinau",
	"ro": "Europe/Bucharest",
	"hu": "Europe/Budapest",
	"sk": "Europe/Bratislava",
	"cz": "Europe/Prague",
	"at": "Europe/Vienna",
	"ch": "Europe/Zurich",
	"nl": "Europe/Amsterdam",
	"be": "Europe/Brussels",
	"tr": "Europe/Istanbul",
	"gr": "Europe/Athens",
	"bg": "Europe/Sofia",
	"lt": "Europe/Vilnius",
	"lv": "Europe/Riga",
	"ee": "Europe/Tallinn",
	"fi": "Europe/Helsinki",
	"se": "Europe/Stockholm",
	"no": "Europe/Oslo",
	"jp": "Asia/Tokyo",
	"cn": "Asia/Shanghai",
	"in": "Asia/Kolkata",
	"au": "Australia/Sydney",
	"br": "America/Sao_Paulo",
	"mx": "America/Mexico_City",
	"ar": "America/Argentina/Buenos_Aires",
	"il": "Asia/Jerusalem",
	"eg": "Africa/Cairo",
	"za": "Africa/Johannesburg",
	"kz": "Asia/Almaty",
	"ge": "Asia/Tbilisi",
	"am": "Asia/Yerevan",
	"az": "Asia/Baku",
}

// TimeZoneForCountry returns the representative zone for a country code, or
// fallback when the code is blank or unknown.
func TimeZoneForCountry(code, fallback string) string {
	if fallback == "" {
		fallback = kp.DefaultLocation.TimeZoneID
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return fallback
	}
	if zone, ok := countryZones[code]; ok {
		return zone
	}
	return fallback
}
