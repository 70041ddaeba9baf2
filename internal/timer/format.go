package timer

import "fmt"

// FormatTime renders seconds as MM:SS. Minutes are never carried into hours,
// so 3661 becomes "61:01". Callers must not pass negative values.
func FormatTime(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ReadableTimeRemaining renders seconds as a phrase such as "1 minute 5 seconds".
func ReadableTimeRemaining(seconds int) string {
	minutes := seconds / 60
	secs := seconds % 60

	switch {
	case minutes == 0:
		return plural(secs, "second")
	case secs == 0:
		return plural(minutes, "minute")
	default:
		return plural(minutes, "minute") + " " + plural(secs, "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
