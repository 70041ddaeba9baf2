// Package notifier delivers timer warnings and completions through shoutrrr.
package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/mescon/Tickarr/internal/clock"
	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/eventbus"
	"github.com/mescon/Tickarr/internal/logger"
	"github.com/mescon/Tickarr/internal/timer"
)

// Sender delivers one message to one shoutrrr URL.
type Sender interface {
	Send(url, message string) error
}

type shoutrrrSender struct{}

func (shoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// Notifiable lists the event types that may trigger a notification.
var Notifiable = []domain.EventType{
	domain.TimerStarted,
	domain.TimerPaused,
	domain.TimerResumed,
	domain.TimerReset,
	domain.TimerCompleted,
	domain.WarningTriggered,
}

// Config selects targets and events.
type Config struct {
	URLs     []string
	Events   []string
	Throttle time.Duration
	Breaker  BreakerConfig
}

// Notifier sends a message for each configured event to every URL.
type Notifier struct {
	eb       eventbus.Publisher
	sender   Sender
	clk      clock.Clock
	urls     []string
	events   []domain.EventType
	throttle time.Duration
	breakers *breakerRegistry

	mu       sync.Mutex
	lastSent map[string]time.Time // per URL
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSender replaces shoutrrr delivery.
func WithSender(s Sender) Option {
	return func(n *Notifier) { n.sender = s }
}

// WithClock replaces the clock used for throttling.
func WithClock(c clock.Clock) Option {
	return func(n *Notifier) { n.clk = c }
}

// NewNotifier validates cfg and creates a Notifier.
func NewNotifier(eb eventbus.Publisher, cfg Config, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		eb:       eb,
		sender:   shoutrrrSender{},
		clk:      clock.NewRealClock(),
		throttle: cfg.Throttle,
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.breakers = newBreakerRegistry(cfg.Breaker, n.clk)

	for _, raw := range cfg.URLs {
		u, err := NormalizeURL(raw)
		if err != nil {
			return nil, err
		}
		n.urls = append(n.urls, u)
	}

	events, err := ParseEvents(cfg.Events)
	if err != nil {
		return nil, err
	}
	n.events = events
	return n, nil
}

// ValidateURLs checks that shoutrrr recognises every configured service.
func (n *Notifier) ValidateURLs() error {
	if len(n.urls) == 0 {
		return nil
	}
	if _, err := shoutrrr.CreateSender(n.urls...); err != nil {
		return fmt.Errorf("invalid notification URL: %w", err)
	}
	return nil
}

// ParseEvents converts event names and rejects ones that cannot notify.
func ParseEvents(names []string) ([]domain.EventType, error) {
	out := make([]domain.EventType, 0, len(names))
	for _, name := range names {
		et := domain.EventType(name)
		if !isNotifiable(et) {
			return nil, fmt.Errorf("event %q cannot trigger notifications", name)
		}
		out = append(out, et)
	}
	return out, nil
}

func isNotifiable(et domain.EventType) bool {
	for _, n := range Notifiable {
		if n == et {
			return true
		}
	}
	return false
}

// Enabled reports whether there is anything to deliver.
func (n *Notifier) Enabled() bool {
	return len(n.urls) > 0 && len(n.events) > 0
}

// Start subscribes to the configured events.
func (n *Notifier) Start() {
	if !n.Enabled() {
		logger.Infof("Notifier disabled (no URLs or events configured)")
		return
	}
	for _, et := range n.events {
		n.eb.Subscribe(et, n.HandleEvent)
	}
	logger.Infof("Notifier started: %d targets, %d event types", len(n.urls), len(n.events))
}

// HandleEvent sends the message for event to every URL not under throttle.
func (n *Notifier) HandleEvent(event domain.Event) {
	message := FormatMessage(event)
	for _, u := range n.urls {
		if !n.claim(u) {
			logger.Debugf("Throttled %s notification for %s", Service(u), event.EventType)
			continue
		}
		n.deliver(u, event, message)
	}
}

// claim reserves a send slot for url, honoring the throttle window.
func (n *Notifier) claim(url string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.clk.Now()
	if last, ok := n.lastSent[url]; ok && now.Sub(last) < n.throttle {
		return false
	}
	n.lastSent[url] = now
	return true
}

func (n *Notifier) deliver(url string, event domain.Event, message string) {
	provider := Service(url)
	data := map[string]interface{}{
		"provider":      provider,
		"trigger_event": string(event.EventType),
	}

	result := domain.NotificationSent
	cb := n.breakers.get(url)
	if !cb.allow() {
		logger.Debugf("Skipped %s notification for %s: circuit open", provider, event.EventType)
		result = domain.NotificationFailed
		data["error"] = ErrCircuitOpen.Error()
	} else if err := n.sender.Send(url, message); err != nil {
		logger.Errorf("Failed to send %s notification for %s: %v", provider, event.EventType, err)
		result = domain.NotificationFailed
		data["error"] = err.Error()
		if cb.recordFailure() {
			logger.Warnf("Notification target %s disabled for %s after repeated failures", provider, n.breakers.cfg.ResetTimeout)
		}
	} else {
		cb.recordSuccess()
		logger.Debugf("Sent %s notification for %s", provider, event.EventType)
	}

	if err := n.eb.Publish(domain.Event{
		AggregateType: domain.AggregateTimer,
		AggregateID:   event.AggregateID,
		EventType:     result,
		EventData:     data,
	}); err != nil {
		logger.Debugf("Failed to publish %s event: %v", result, err)
	}
}

// TargetStatus is the delivery health of one configured URL. The URL itself
// is not exposed since it usually embeds credentials.
type TargetStatus struct {
	Service string       `json:"service"`
	Breaker BreakerStats `json:"breaker"`
}

// Targets reports the breaker state of every configured URL in config order.
func (n *Notifier) Targets() []TargetStatus {
	stats := n.breakers.all()
	out := make([]TargetStatus, 0, len(n.urls))
	for _, u := range n.urls {
		out = append(out, TargetStatus{Service: Service(u), Breaker: stats[u]})
	}
	return out
}

// FormatMessage renders the notification text of a timer event.
func FormatMessage(event domain.Event) string {
	data, _ := event.ParseTimerEventData()
	label := data.Label
	if label == "" {
		label = "Timer"
	}

	switch event.EventType {
	case domain.WarningTriggered:
		return fmt.Sprintf("⏰ %s: %s remaining", label, timer.ReadableTimeRemaining(data.Remaining))
	case domain.TimerCompleted:
		return fmt.Sprintf("✅ %s finished (%s)", label, timer.ReadableTimeRemaining(data.Total))
	case domain.TimerStarted:
		return fmt.Sprintf("▶️ %s started: %s", label, timer.ReadableTimeRemaining(data.Remaining))
	case domain.TimerPaused:
		return fmt.Sprintf("⏸️ %s paused with %s left", label, timer.ReadableTimeRemaining(data.Remaining))
	case domain.TimerResumed:
		return fmt.Sprintf("▶️ %s resumed: %s left", label, timer.ReadableTimeRemaining(data.Remaining))
	case domain.TimerReset:
		return fmt.Sprintf("↩️ %s reset to %s", label, timer.FormatTime(data.Total))
	default:
		return fmt.Sprintf("📢 %s: %s", label, event.EventType)
	}
}
