package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/libya-atlas/internal/logging"
)

// RegistryMetrics receives session-level observations.
type RegistryMetrics interface {
	SetActiveSessions(n int)
	IncFrames()
}

// Registry tracks live view sessions that share one Dispatcher.
type Registry struct {
	dispatcher *Dispatcher
	metrics    RegistryMetrics
	log        logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryMetrics attaches session gauges and frame counters.
func WithRegistryMetrics(m RegistryMetrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l logging.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(d *Dispatcher, opts ...RegistryOption) *Registry {
	r := &Registry{
		dispatcher: d,
		log:        logging.Noop(),
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create opens a session with the initial view of a width x height surface.
func (r *Registry) Create(ctx context.Context, width, height float64) (*Session, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: surface %vx%v", ErrInvalidEvent, width, height)
	}
	id := uuid.NewString()
	initial := NewViewState(r.dispatcher.Store(), width, height, r.dispatcher.Now())
	s := newSession(id, r.dispatcher, initial, r.log)

	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetActiveSessions(n)
	}
	logging.FromContext(ctx, r.log).Info(ctx, "view session created",
		logging.String("session_id", id),
		logging.Float64("width", width),
		logging.Float64("height", height),
	)
	return s, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close removes and closes the session with id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	if r.metrics != nil {
		r.metrics.SetActiveSessions(n)
	}
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Tick applies a frame event at now to every animating session. It is
// registered as a frame clock listener.
func (r *Registry) Tick(now time.Time) {
	ctx := context.Background()
	for _, s := range r.snapshot() {
		if !s.Animating() {
			continue
		}
		if _, err := s.Apply(ctx, Event{Type: EventFrame, At: now}); err != nil {
			continue
		}
		if r.metrics != nil {
			r.metrics.IncFrames()
		}
	}
}

// Reload re-derives every session from the current store contents. It is
// registered as a store subscriber.
func (r *Registry) Reload(ctx context.Context) {
	for _, s := range r.snapshot() {
		if _, err := s.Apply(ctx, Event{Type: EventReload}); err != nil {
			logging.FromContext(ctx, r.log).Warn(ctx, "view session reload failed",
				logging.String("session_id", s.ID()),
				logging.Err(err),
			)
		}
	}
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
	if r.metrics != nil {
		r.metrics.SetActiveSessions(0)
	}
}
