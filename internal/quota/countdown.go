package quota

import (
	"fmt"
	"time"
)

// FormatResetCountdown renders the time remaining until the quota reset
// as human text: "2 hours, 15 minutes", "5 minutes, 30 seconds" or
// "42 seconds". Negative durations clamp to zero.
func FormatResetCountdown(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}

	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	if hours >= 1 {
		return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
	}
	if minutes >= 1 {
		return fmt.Sprintf("%d minutes, %d seconds", minutes, seconds)
	}
	return fmt.Sprintf("%d seconds", seconds)
}
