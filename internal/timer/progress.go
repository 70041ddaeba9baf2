package timer

// Progress returns the completed share of a countdown as a percentage.
// A zero total reports no progress. Inconsistent inputs are not clamped:
// remaining > total yields a negative value.
func Progress(remaining, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-remaining) / float64(total) * 100
}
