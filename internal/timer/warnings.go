package timer

import (
	"encoding/json"
	"sort"
)

// Warning thresholds in seconds remaining.
const (
	TwoMinuteWarning  = 120
	FiveMinuteWarning = 300
)

// WarningConfig selects which warnings a timer raises.
type WarningConfig struct {
	WarningAt2Min bool `json:"warning_at_2min" yaml:"warning_at_2min"`
	WarningAt5Min bool `json:"warning_at_5min" yaml:"warning_at_5min"`
}

// Thresholds is an ascending list of seconds-remaining values at which a
// warning fires.
type Thresholds []int

// CalculateWarningThresholds returns the thresholds that apply to a timer of
// total seconds. A threshold only applies when the timer is strictly longer
// than it.
func CalculateWarningThresholds(total int, cfg WarningConfig) Thresholds {
	th := Thresholds{}
	if cfg.WarningAt2Min && total > TwoMinuteWarning {
		th = append(th, TwoMinuteWarning)
	}
	if cfg.WarningAt5Min && total > FiveMinuteWarning {
		th = append(th, FiveMinuteWarning)
	}
	return th
}

// IsInWarningZone reports whether remaining is at or below any threshold.
func IsInWarningZone(remaining int, th Thresholds) bool {
	for _, t := range th {
		if remaining <= t {
			return true
		}
	}
	return false
}

// TriggeredWarnings is the immutable set of thresholds already fired during
// the current run. The zero value is empty and ready to use.
type TriggeredWarnings struct {
	set map[int]struct{}
}

// NewTriggeredWarnings builds a set from the given thresholds.
func NewTriggeredWarnings(thresholds ...int) TriggeredWarnings {
	return TriggeredWarnings{}.With(thresholds...)
}

// Has reports membership.
func (tw TriggeredWarnings) Has(threshold int) bool {
	_, ok := tw.set[threshold]
	return ok
}

// Len returns the number of triggered thresholds.
func (tw TriggeredWarnings) Len() int {
	return len(tw.set)
}

// With returns a copy of the set with thresholds added. tw is unchanged.
func (tw TriggeredWarnings) With(thresholds ...int) TriggeredWarnings {
	if len(thresholds) == 0 {
		return tw
	}
	next := make(map[int]struct{}, len(tw.set)+len(thresholds))
	for t := range tw.set {
		next[t] = struct{}{}
	}
	for _, t := range thresholds {
		next[t] = struct{}{}
	}
	return TriggeredWarnings{set: next}
}

// Values returns the thresholds in ascending order.
func (tw TriggeredWarnings) Values() []int {
	out := make([]int, 0, len(tw.set))
	for t := range tw.set {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (tw TriggeredWarnings) MarshalJSON() ([]byte, error) {
	return json.Marshal(tw.Values())
}

// UnmarshalJSON decodes an array of thresholds.
func (tw *TriggeredWarnings) UnmarshalJSON(data []byte) error {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*tw = NewTriggeredWarnings(values...)
	return nil
}

// HasWarningBeenTriggered reports whether threshold already fired this run.
func HasWarningBeenTriggered(threshold int, tw TriggeredWarnings) bool {
	return tw.Has(threshold)
}

// TickDecision is the outcome of evaluating one tick.
type TickDecision struct {
	Remaining     int   `json:"remaining"`
	InWarningZone bool  `json:"in_warning_zone"`
	Fired         []int `json:"fired"`
	Completed     bool  `json:"completed"`
}

// ShouldWarn reports whether at least one threshold was crossed on this tick.
func (d TickDecision) ShouldWarn() bool {
	return len(d.Fired) > 0
}

// EvaluateTick decides which warnings fire at remaining seconds and returns
// the triggered set to use for the next tick. Each threshold fires at most
// once per run.
func EvaluateTick(remaining int, th Thresholds, triggered TriggeredWarnings) (TickDecision, TriggeredWarnings) {
	d := TickDecision{
		Remaining:     remaining,
		InWarningZone: IsInWarningZone(remaining, th),
		Fired:         []int{},
		Completed:     remaining <= 0,
	}
	for _, t := range th {
		if remaining <= t && !HasWarningBeenTriggered(t, triggered) {
			d.Fired = append(d.Fired, t)
		}
	}
	sort.Ints(d.Fired)
	return d, triggered.With(d.Fired...)
}
