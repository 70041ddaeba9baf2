// Package timer holds the countdown rules shared by every Tickarr surface:
// duration parsing and validation, display formatting, progress, warning
// thresholds and the status transition table.
//
// Everything here is pure. Callers own the clock, the current status and the
// set of warnings already fired, and pass them in on every call.
package timer
