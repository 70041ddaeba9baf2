package timer

import (
	"math"
	"regexp"
	"strconv"
)

const (
	// MinDuration is the shortest timer, in seconds.
	MinDuration = 1
	// MaxDuration is the longest timer, in seconds (24 hours).
	MaxDuration = 86400
	// MaxParsableDuration is the largest value ParseTimeString can express ("999:59").
	// It is lower than MaxDuration; longer timers must be given in seconds.
	MaxParsableDuration = 999*60 + 59
)

// Duration is a validated number of seconds within [MinDuration, MaxDuration].
type Duration int

// Seconds returns the duration as a plain int.
func (d Duration) Seconds() int {
	return int(d)
}

func (d Duration) String() string {
	return FormatTime(int(d))
}

var timeStringPattern = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

// ValidateDuration checks that seconds is within [MinDuration, MaxDuration].
func ValidateDuration(seconds int) (Duration, error) {
	if seconds < MinDuration {
		return 0, invalidDuration("%d must be a positive number of seconds", seconds)
	}
	if seconds > MaxDuration {
		return 0, invalidDuration("%d exceeds the maximum of %d seconds", seconds, MaxDuration)
	}
	return Duration(seconds), nil
}

// ValidateDurationValue validates an untyped number such as one decoded from
// JSON. Fractional, NaN and infinite values are rejected.
func ValidateDurationValue(v float64) (Duration, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, invalidDuration("%v is not a whole number of seconds", v)
	}
	if v < MinDuration || v > MaxDuration {
		return 0, invalidDuration("%v is outside %d-%d seconds", v, MinDuration, MaxDuration)
	}
	return ValidateDuration(int(v))
}

// ParseTimeString parses "M:SS", "MM:SS" or "MMM:SS" into a validated duration.
// The seconds field must have exactly two digits but is not range checked, so
// "05:75" is 375 seconds.
func ParseTimeString(text string) (Duration, error) {
	m := timeStringPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, invalidFormat("%q does not match MM:SS", text)
	}
	// Both captures are digit-only and at most three characters long.
	minutes, _ := strconv.Atoi(m[1])
	seconds, _ := strconv.Atoi(m[2])
	return ValidateDuration(minutes*60 + seconds)
}
