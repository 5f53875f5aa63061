package cli

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "0ms"},
		{1, "1ms"},
		{100, "100ms"},
		{999, "999ms"},
		{1000, "1.0s"},
		{1500, "1.5s"},
		{5000, "5.0s"},
		{59000, "59.0s"},
		{60000, "1m0.0s"},
		{61000, "1m1.0s"},
		{90000, "1m30.0s"},
		{120000, "2m0.0s"},
		{125500, "2m5.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatDuration(tt.ms)
			if got != tt.want {
				t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
			}
		})
	}
}


func TestFormatClockTime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		ok   bool
		want string
	}{
		{0, true, "0:00:00.000000000"},
		{1500 * time.Millisecond, true, "0:00:01.500000000"},
		{10*time.Second + 7, true, "0:00:10.000000007"},
		{time.Hour + 2*time.Minute + 3*time.Second, true, "1:02:03.000000000"},
		{25 * time.Hour, true, "25:00:00.000000000"},
		{-time.Second, true, "0:00:00.000000000"},
		{time.Second, false, ClockNone},
	}
	for _, tt := range tests {
		if got := FormatClockTime(tt.d, tt.ok); got != tt.want {
			t.Errorf("FormatClockTime(%v, %v) = %q, want %q", tt.d, tt.ok, got, tt.want)
		}
	}
}
