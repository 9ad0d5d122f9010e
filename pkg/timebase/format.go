package timebase

import (
	"fmt"
	"time"
)

// FormatDuration renders d as HH:MM:SS.d with tenths truncated. Hours are
// not wrapped at 24.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	hours := int64(d / time.Hour)
	minutes := int64(d/time.Minute) % 60
	seconds := int64(d/time.Second) % 60
	tenths := int64(d%time.Second) / int64(100*time.Millisecond)
	return fmt.Sprintf("%s%02d:%02d:%02d.%01d", sign, hours, minutes, seconds, tenths)
}

// FormatClock renders a wall-clock time with tenths of a second.
func FormatClock(t time.Time) string {
	return t.Format("15:04:05.0")
}
