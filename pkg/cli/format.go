package cli

import (
	"fmt"
	"time"
)

// ClockNone is how FormatClockTime renders an unknown time.
const ClockNone = "--:--:--.---------"

// FormatClockTime formats d as H:MM:SS.nnnnnnnnn, or ClockNone when ok is
// false. Negative durations are clamped to zero.
func FormatClockTime(d time.Duration, ok bool) string {
	if !ok {
		return ClockNone
	}
	d = max(d, 0)
	h := d / time.Hour
	m := d % time.Hour / time.Minute
	s := d % time.Minute / time.Second
	ns := d % time.Second
	return fmt.Sprintf("%d:%02d:%02d.%09d", h, m, s, ns)
}

// FormatDuration formats milliseconds to human readable string
func FormatDuration(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	secs := float64(ms) / 1000
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs / 60)
	secs = secs - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

