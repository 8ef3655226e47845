package common

import (
	"strconv"
)

// FormatKp renders a Kp value with one decimal, the same on every surface.
func FormatKp(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
