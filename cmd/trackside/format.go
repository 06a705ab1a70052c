package main

import (
	"fmt"
	"time"
)

// formatDecoderTime renders decoder microseconds as a UTC wall clock. The
// decoder RTC counts microseconds since the Unix epoch.
func formatDecoderTime(micros int64) string {
	if micros <= 0 {
		return "-"
	}
	return time.UnixMicro(micros).UTC().Format("2006-01-02 15:04:05.000")
}

// formatLapTime renders a lap duration in microseconds as m:ss.mmm. Zero
// means no previous lap to measure against.
func formatLapTime(micros int64) string {
	if micros <= 0 {
		return "-"
	}
	d := time.Duration(micros) * time.Microsecond
	minutes := d / time.Minute
	d -= minutes * time.Minute
	return fmt.Sprintf("%d:%06.3f", int64(minutes), d.Seconds())
}

func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	return age.Round(time.Millisecond).String()
}
