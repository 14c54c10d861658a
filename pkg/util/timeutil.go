package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// MaxAgeSeconds converts the distance to expiresAt into a cookie max-age, never below one second.
func MaxAgeSeconds(now, expiresAt time.Time) int {
	seconds := int(expiresAt.Sub(now).Round(time.Second) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
