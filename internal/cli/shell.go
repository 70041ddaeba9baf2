// Package cli implements the interactive Tickarr shell. Calculation commands
// call the countdown core directly; run starts a local countdown driven by the
// same TimerService the server uses.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mescon/Tickarr/internal/clock"
	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/services"
	"github.com/mescon/Tickarr/internal/timer"
)

// Shell executes one command line at a time and writes results to out.
type Shell struct {
	out      *syncWriter
	timers   *services.TimerService
	interval time.Duration

	mu      sync.Mutex
	current string // ID of the local countdown, if any
	watch   bool
}

// syncWriter serializes writes from the prompt loop and tick callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, v ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, v...)
}

// NewShell creates a Shell writing to out. An optional Clock drives the local
// countdown; RealClock is used when none is given.
func NewShell(out io.Writer, interval time.Duration, clocks ...clock.Clock) *Shell {
	sh := &Shell{out: &syncWriter{w: out}, interval: interval}
	sh.timers = services.NewTimerService(&printer{sh: sh}, nil, interval, clocks...)
	return sh
}

// Close stops the local countdown.
func (sh *Shell) Close() {
	sh.timers.Stop()
}

// Exec runs one command line. It returns false when the shell should exit.
func (sh *Shell) Exec(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		sh.printHelp()
	case "format", "f":
		err = sh.cmdFormat(args)
	case "readable":
		err = sh.cmdReadable(args)
	case "parse", "p":
		err = sh.cmdParse(args)
	case "validate", "v":
		err = sh.cmdValidate(args)
	case "progress":
		err = sh.cmdProgress(args)
	case "thresholds", "th":
		err = sh.cmdThresholds(args)
	case "zone", "z":
		err = sh.cmdZone(args)
	case "transition", "t":
		err = sh.cmdTransition(args)
	case "transitions":
		sh.cmdTransitions()
	case "run", "r":
		err = sh.cmdRun(args)
	case "pause":
		err = sh.act(sh.timers.Pause)
	case "resume":
		err = sh.act(sh.timers.Resume)
	case "reset":
		err = sh.act(sh.timers.Reset)
	case "restart":
		err = sh.act(sh.timers.Start)
	case "status", "s":
		err = sh.cmdStatus()
	case "watch":
		sh.mu.Lock()
		sh.watch = !sh.watch
		on := sh.watch
		sh.mu.Unlock()
		sh.out.printf("Tick output %s\n", onOff(on))
	case "quit", "exit", "q":
		return false
	default:
		sh.out.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		sh.out.printf("Error: %v\n", err)
	}
	return true
}

func (sh *Shell) printHelp() {
	sh.out.printf(`
Tickarr Commands:
  Calculations:
    format <seconds>               - Render seconds as MM:SS
    readable <seconds>             - Render seconds as words
    parse <MM:SS>                  - Parse a time string into seconds
    validate <seconds>             - Check a duration is in range
    progress <remaining> <total>   - Completed percentage
    thresholds <total> [2] [5]     - Warning thresholds for a timer
    zone <remaining> <total> [2] [5] - Whether remaining is in a warning zone
    transition <from> <to>         - Check a status transition
    transitions                    - Show the transition table

  Countdown:
    run <MM:SS> [2] [5]            - Start a local countdown with warnings
    pause | resume | reset | restart
    status                         - Show the countdown
    watch                          - Toggle per-tick output

    help                           - Show this help
    quit                           - Exit
`)
}

func (sh *Shell) cmdFormat(args []string) error {
	n, err := nonNegativeArg(args, 0, "seconds")
	if err != nil {
		return err
	}
	sh.out.printf("%s\n", timer.FormatTime(n))
	return nil
}

func (sh *Shell) cmdReadable(args []string) error {
	n, err := nonNegativeArg(args, 0, "seconds")
	if err != nil {
		return err
	}
	sh.out.printf("%s\n", timer.ReadableTimeRemaining(n))
	return nil
}

func (sh *Shell) cmdParse(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parse <MM:SS>")
	}
	d, err := timer.ParseTimeString(args[0])
	if err != nil {
		return err
	}
	sh.out.printf("%d seconds (%s)\n", d.Seconds(), d)
	return nil
}

func (sh *Shell) cmdValidate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: validate <seconds>")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("seconds must be a number")
	}
	d, err := timer.ValidateDurationValue(v)
	if err != nil {
		return err
	}
	sh.out.printf("valid: %d seconds (%s)\n", d.Seconds(), d)
	return nil
}

func (sh *Shell) cmdProgress(args []string) error {
	remaining, err := intArg(args, 0, "remaining")
	if err != nil {
		return err
	}
	total, err := intArg(args, 1, "total")
	if err != nil {
		return err
	}
	sh.out.printf("%.1f%%\n", timer.Progress(remaining, total))
	return nil
}

func (sh *Shell) cmdThresholds(args []string) error {
	total, err := intArg(args, 0, "total")
	if err != nil {
		return err
	}
	cfg, err := warningArgs(args[1:])
	if err != nil {
		return err
	}
	th := timer.CalculateWarningThresholds(total, cfg)
	if len(th) == 0 {
		sh.out.printf("no warnings\n")
		return nil
	}
	labels := make([]string, 0, len(th))
	for _, t := range th {
		labels = append(labels, timer.FormatTime(t))
	}
	sh.out.printf("%s\n", strings.Join(labels, ", "))
	return nil
}

func (sh *Shell) cmdZone(args []string) error {
	remaining, err := intArg(args, 0, "remaining")
	if err != nil {
		return err
	}
	total, err := intArg(args, 1, "total")
	if err != nil {
		return err
	}
	cfg, err := warningArgs(args[2:])
	if err != nil {
		return err
	}
	in := timer.IsInWarningZone(remaining, timer.CalculateWarningThresholds(total, cfg))
	sh.out.printf("in warning zone: %t\n", in)
	return nil
}

func (sh *Shell) cmdTransition(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: transition <from> <to>")
	}
	from, err := timer.ParseStatus(args[0])
	if err != nil {
		return err
	}
	to, err := timer.ParseStatus(args[1])
	if err != nil {
		return err
	}
	valid := timer.IsValidTransition(from, to)
	sh.out.printf("%s -> %s: valid=%t", from, to, valid)
	if valid {
		sh.out.printf(" resets_warnings=%t", timer.ResetsWarnings(from, to))
	}
	sh.out.printf("\n")
	return nil
}

func (sh *Shell) cmdTransitions() {
	for _, st := range timer.Statuses {
		next := timer.AllowedTransitions(st)
		names := make([]string, 0, len(next))
		for _, n := range next {
			names = append(names, n.String())
		}
		sh.out.printf("%-10s -> %s\n", st, strings.Join(names, ", "))
	}
}

func (sh *Shell) cmdRun(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: run <MM:SS> [2] [5]")
	}
	d, err := timer.ParseTimeString(args[0])
	if err != nil {
		return err
	}
	cfg, err := warningArgs(args[1:])
	if err != nil {
		return err
	}

	sh.mu.Lock()
	previous := sh.current
	sh.mu.Unlock()
	if previous != "" {
		if err := sh.timers.Delete(previous); err != nil {
			sh.out.printf("Error: previous countdown: %v\n", err)
		}
	}

	snap, err := sh.timers.Create("cli", d.Seconds(), cfg)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	sh.current = snap.ID
	sh.mu.Unlock()

	if _, err := sh.timers.Start(snap.ID); err != nil {
		return err
	}
	if len(snap.Thresholds) > 0 {
		sh.out.printf("Running %s (warnings at %v seconds)\n", snap.Formatted, []int(snap.Thresholds))
	} else {
		sh.out.printf("Running %s\n", snap.Formatted)
	}
	return nil
}

func (sh *Shell) act(fn func(id string) (services.Snapshot, error)) error {
	id := sh.currentID()
	if id == "" {
		return fmt.Errorf("no countdown, start one with run <MM:SS>")
	}
	snap, err := fn(id)
	if err != nil {
		return err
	}
	sh.out.printf("%s %s\n", snap.Status, snap.Formatted)
	return nil
}

func (sh *Shell) cmdStatus() error {
	id := sh.currentID()
	if id == "" {
		sh.out.printf("no countdown\n")
		return nil
	}
	snap, err := sh.timers.Get(id)
	if err != nil {
		return err
	}
	zone := ""
	if snap.InWarningZone {
		zone = " [warning]"
	}
	sh.out.printf("%s %s (%s left, %.1f%% done)%s\n", snap.Status, snap.Formatted, snap.Readable, snap.Progress, zone)
	return nil
}

func (sh *Shell) currentID() string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.current
}

func (sh *Shell) watching() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.watch
}

// printer receives the events of the local countdown and reports them.
type printer struct {
	sh *Shell
}

func (p *printer) Publish(event domain.Event) error {
	data, _ := event.ParseTimerEventData()
	switch event.EventType {
	case domain.TimerTicked:
		if p.sh.watching() {
			p.sh.out.printf("%s\n", timer.FormatTime(data.Remaining))
		}
	case domain.WarningTriggered:
		p.sh.out.printf("⏰ %s remaining\n", timer.ReadableTimeRemaining(data.Remaining))
	case domain.TimerCompleted:
		p.sh.out.printf("✅ Time's up! (%s)\n", timer.ReadableTimeRemaining(data.Total))
	}
	return nil
}

func (p *printer) Subscribe(domain.EventType, func(domain.Event)) {}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%s is required", name)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func nonNegativeArg(args []string, i int, name string) (int, error) {
	n, err := intArg(args, i, name)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return n, nil
}

// warningArgs reads "2", "5", "2min", "5min" or "both" into a WarningConfig.
func warningArgs(args []string) (timer.WarningConfig, error) {
	var cfg timer.WarningConfig
	for _, a := range args {
		switch strings.ToLower(a) {
		case "2", "2min", "2m":
			cfg.WarningAt2Min = true
		case "5", "5min", "5m":
			cfg.WarningAt5Min = true
		case "both":
			cfg.WarningAt2Min = true
			cfg.WarningAt5Min = true
		default:
			return cfg, fmt.Errorf("unknown warning %q, use 2, 5 or both", a)
		}
	}
	return cfg, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
