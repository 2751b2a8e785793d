package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of atlas_view_transitions_total.
const (
	TransitionStarted    = "started"
	TransitionSuperseded = "superseded"
	TransitionCompleted  = "completed"
)

// ViewCollector exposes view-session Prometheus metrics.
type ViewCollector struct {
	gatherer prometheus.Gatherer

	EventsTotal      *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	TransitionsTotal *prometheus.CounterVec
	FramesTotal      prometheus.Counter
	ActiveSessions   prometheus.Gauge
}

// NewViewCollector registers view metrics against the provided registerer.
func NewViewCollector(reg prometheus.Registerer) (*ViewCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_view_events_total",
		Help: "View events dispatched, labeled by event type and result (ok or error).",
	}, []string{"type", "result"})
	events, err := register(reg, events, "atlas_view_events_total")
	if err != nil {
		return nil, err
	}

	dispatch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_view_dispatch_duration_seconds",
		Help:    "Time spent applying one view event.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"type"})
	dispatch, err = register(reg, dispatch, "atlas_view_dispatch_duration_seconds")
	if err != nil {
		return nil, err
	}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_view_transitions_total",
		Help: "Animated view transitions, labeled by kind and outcome (started, superseded, completed).",
	}, []string{"kind", "outcome"})
	transitions, err = register(reg, transitions, "atlas_view_transitions_total")
	if err != nil {
		return nil, err
	}

	frames := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atlas_view_frames_total",
		Help: "Animation frames delivered to view sessions.",
	})
	frames, err = register(reg, frames, "atlas_view_frames_total")
	if err != nil {
		return nil, err
	}

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atlas_view_sessions_active",
		Help: "Number of open view sessions.",
	})
	sessions, err = register(reg, sessions, "atlas_view_sessions_active")
	if err != nil {
		return nil, err
	}

	return &ViewCollector{
		gatherer:         gatherer,
		EventsTotal:      events,
		DispatchDuration: dispatch,
		TransitionsTotal: transitions,
		FramesTotal:      frames,
		ActiveSessions:   sessions,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ViewCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveEvent records one dispatched event and how long it took.
func (c *ViewCollector) ObserveEvent(eventType string, err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	if c.EventsTotal != nil {
		c.EventsTotal.WithLabelValues(eventType, result).Inc()
	}
	if c.DispatchDuration != nil {
		c.DispatchDuration.WithLabelValues(eventType).Observe(d.Seconds())
	}
}

// ObserveTransition counts a transition outcome for kind.
func (c *ViewCollector) ObserveTransition(kind, outcome string) {
	if c == nil || c.TransitionsTotal == nil {
		return
	}
	c.TransitionsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncFrames counts one delivered animation frame.
func (c *ViewCollector) IncFrames() {
	if c == nil || c.FramesTotal == nil {
		return
	}
	c.FramesTotal.Inc()
}

// SetActiveSessions updates the open-session gauge.
func (c *ViewCollector) SetActiveSessions(n int) {
	if c == nil || c.ActiveSessions == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}
