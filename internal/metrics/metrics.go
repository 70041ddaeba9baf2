package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/eventbus"
	"github.com/mescon/Tickarr/internal/logger"
	"github.com/mescon/Tickarr/internal/timer"
)

// StatusCounter reports how many timers are in each status.
type StatusCounter interface {
	CountByStatus() map[timer.Status]int
}

// DropCounter reports event deliveries dropped by the event bus.
type DropCounter interface {
	Dropped() int64
}

// MetricsService exposes Prometheus metrics for Tickarr
type MetricsService struct {
	eventBus eventbus.Publisher
	registry *prometheus.Registry

	// Counters
	timersCreated      prometheus.Counter
	transitionsTotal   *prometheus.CounterVec
	warningsTotal      *prometheus.CounterVec
	completionsTotal   prometheus.Counter
	notificationsTotal *prometheus.CounterVec

	// Histograms
	completedDuration prometheus.Histogram
}

// NewMetricsService creates the metrics on a private registry. timers and
// drops may be nil.
func NewMetricsService(eb eventbus.Publisher, timers StatusCounter, drops DropCounter) *MetricsService {
	m := &MetricsService{
		eventBus: eb,
		registry: prometheus.NewRegistry(),

		timersCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tickarr_timers_created_total",
				Help: "Total number of timers created",
			},
		),

		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickarr_status_transitions_total",
				Help: "Total number of timer status transitions",
			},
			[]string{"from", "to"},
		),

		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickarr_warnings_triggered_total",
				Help: "Total number of warnings fired by threshold",
			},
			[]string{"threshold"}, // seconds remaining
		),

		completionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tickarr_timers_completed_total",
				Help: "Total number of timers that counted down to zero",
			},
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickarr_notifications_total",
				Help: "Total number of notifications by provider and outcome",
			},
			[]string{"provider", "outcome"}, // sent, failed
		),

		completedDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickarr_completed_timer_duration_seconds",
				Help:    "Configured duration of completed timers",
				Buckets: prometheus.ExponentialBuckets(60, 2, 11), // 1min to ~17hours
			},
		),
	}

	m.registry.MustRegister(
		m.timersCreated,
		m.transitionsTotal,
		m.warningsTotal,
		m.completionsTotal,
		m.notificationsTotal,
		m.completedDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if timers != nil {
		for _, st := range timer.Statuses {
			status := st
			m.registry.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name:        "tickarr_timers",
					Help:        "Number of timers by status",
					ConstLabels: prometheus.Labels{"status": status.String()},
				},
				func() float64 { return float64(timers.CountByStatus()[status]) },
			))
		}
	}

	if drops != nil {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tickarr_eventbus_dropped_total",
				Help: "Event deliveries dropped because a subscriber was full",
			},
			func() float64 { return float64(drops.Dropped()) },
		))
	}

	return m
}

// Registry returns the registry holding every Tickarr metric.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Start subscribes to events and updates metrics
func (m *MetricsService) Start() {
	m.eventBus.Subscribe(domain.TimerCreated, m.handleTimerCreated)
	for _, et := range []domain.EventType{domain.TimerStarted, domain.TimerPaused, domain.TimerResumed, domain.TimerReset} {
		m.eventBus.Subscribe(et, m.handleTransition)
	}
	m.eventBus.Subscribe(domain.TimerCompleted, m.handleTimerCompleted)
	m.eventBus.Subscribe(domain.WarningTriggered, m.handleWarningTriggered)
	m.eventBus.Subscribe(domain.NotificationSent, m.handleNotification("sent"))
	m.eventBus.Subscribe(domain.NotificationFailed, m.handleNotification("failed"))

	logger.Infof("Metrics service started")
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (m *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Event handlers

func (m *MetricsService) handleTimerCreated(event domain.Event) {
	m.timersCreated.Inc()
}

func (m *MetricsService) handleTransition(event domain.Event) {
	data, ok := event.ParseTimerEventData()
	if !ok {
		return
	}
	from := data.From
	if from == "" {
		from = "unknown"
	}
	m.transitionsTotal.WithLabelValues(from, data.Status).Inc()
}

func (m *MetricsService) handleTimerCompleted(event domain.Event) {
	m.handleTransition(event)
	m.completionsTotal.Inc()
	if total, ok := event.GetInt("total"); ok && total > 0 {
		m.completedDuration.Observe(float64(total))
	}
}

func (m *MetricsService) handleWarningTriggered(event domain.Event) {
	threshold := event.GetIntOr("threshold", 0)
	m.warningsTotal.WithLabelValues(strconv.Itoa(threshold)).Inc()
}

func (m *MetricsService) handleNotification(outcome string) func(domain.Event) {
	return func(event domain.Event) {
		provider := event.GetStringOr("provider", "unknown")
		m.notificationsTotal.WithLabelValues(provider, outcome).Inc()
	}
}
