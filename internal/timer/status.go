package timer

import "fmt"

// Status is the lifecycle state of a countdown.
type Status int

const (
	Idle Status = iota
	Running
	Paused
	Completed
)

// Statuses lists every status in declaration order.
var Statuses = []Status{Idle, Running, Paused, Completed}

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus converts the lowercase string form back into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "idle":
		return Idle, nil
	case "running":
		return Running, nil
	case "paused":
		return Paused, nil
	case "completed":
		return Completed, nil
	default:
		return 0, fmt.Errorf("unknown timer status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case Idle, Running, Paused, Completed:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown timer status %d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// AllowedTransitions returns the statuses reachable from current.
// Unknown statuses have no outgoing transitions.
func AllowedTransitions(current Status) []Status {
	switch current {
	case Idle:
		return []Status{Running, Idle}
	case Running:
		return []Status{Paused, Idle}
	case Paused:
		return []Status{Running, Idle}
	case Completed:
		return []Status{Idle, Running}
	default:
		return nil
	}
}

// IsValidTransition reports whether a timer may move from current to next.
// Idle is the only status that may transition to itself.
func IsValidTransition(current, next Status) bool {
	for _, s := range AllowedTransitions(current) {
		if s == next {
			return true
		}
	}
	return false
}

// ResetsWarnings reports whether moving from current to next begins a new run,
// which means previously triggered warnings must be forgotten.
func ResetsWarnings(current, next Status) bool {
	if next == Idle {
		return true
	}
	return next == Running && (current == Idle || current == Completed)
}

// TriggeredAfterTransition returns the triggered set to carry into next.
func TriggeredAfterTransition(current, next Status, triggered TriggeredWarnings) TriggeredWarnings {
	if ResetsWarnings(current, next) {
		return TriggeredWarnings{}
	}
	return triggered
}
