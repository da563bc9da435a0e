// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"time"
)

// SendTimeLayout is the provider wire format for scheduled send times.
const SendTimeLayout = "20060102150405"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UTCNowAdd returns the current UTC time plus the given duration
func UTCNowAdd(d time.Duration) time.Time {
	return UTCNow().Add(d)
}

// IsExpired checks if the given time is in the past (expired)
func IsExpired(t time.Time) bool {
	return UTCNow().After(t)
}

// TimeToUTC converts a time to UTC if it's not already
func TimeToUTC(t time.Time) time.Time {
	return t.UTC()
}

// FormatSendTime renders a time in the provider's 14-digit wire format.
func FormatSendTime(t time.Time) string {
	return t.UTC().Format(SendTimeLayout)
}

// ParseSendTime parses the provider's YYYYMMDDHHMMSS wire format. The
// empty string is accepted and returns the zero time, meaning "send now".
func ParseSendTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if len(s) != len(SendTimeLayout) {
		return time.Time{}, fmt.Errorf("send time must be %d digits, got %q", len(SendTimeLayout), s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("send time must contain only digits, got %q", s)
		}
	}
	t, err := time.ParseInLocation(SendTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid send time %q: %w", s, err)
	}
	return t, nil
}
