package state

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/observability"
)

// Session owns one ViewState and serialises the events applied to it.
type Session struct {
	id         string
	dispatcher *Dispatcher
	log        logging.Logger

	mu          sync.Mutex
	state       ViewState
	closed      bool
	nextSub     int
	subscribers map[int]chan ViewState
}

func newSession(id string, d *Dispatcher, initial ViewState, log logging.Logger) *Session {
	return &Session{
		id:          id,
		dispatcher:  d,
		log:         log.With(logging.String("session_id", id)),
		state:       initial,
		subscribers: make(map[int]chan ViewState),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current view state.
func (s *Session) Snapshot() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Animating reports whether a transition is in flight.
func (s *Session) Animating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.state.Animator.Running
}

// Apply dispatches ev against the session state and notifies subscribers
// when the revision changes. Frame events are not traced.
func (s *Session) Apply(ctx context.Context, ev Event) (ViewState, error) {
	var span trace.Span
	if ev.Type != EventFrame {
		ctx, span = observability.StartSpan(ctx, "atlas.view.Dispatch", s.id,
			observability.AttrEventType.String(string(ev.Type)))
		defer span.End()
	}
	ctx = logging.ContextWithSessionID(ctx, s.id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrSessionClosed, s.id)
		recordSpanError(span, err)
		return ViewState{}, err
	}
	prev := s.state
	next, err := s.dispatcher.Dispatch(ctx, prev, ev)
	if err != nil {
		s.mu.Unlock()
		recordSpanError(span, err)
		return prev, err
	}
	s.state = next
	changed := next.Revision != prev.Revision
	if changed {
		s.publishLocked(next)
	}
	s.mu.Unlock()

	if span != nil {
		span.SetAttributes(observability.AttrRevision.Int64(int64(next.Revision)))
	}
	return next, nil
}

func recordSpanError(span trace.Span, err error) {
	if span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Subscribe returns a channel receiving every new revision. Slow readers
// only see the latest state; older undelivered revisions are dropped.
// The channel is closed by the returned cancel function or by Close.
func (s *Session) Subscribe(buffer int) (<-chan ViewState, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan ViewState, buffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

func (s *Session) publishLocked(vs ViewState) {
	for _, ch := range s.subscribers {
		select {
		case ch <- vs:
			continue
		default:
		}
		// Full: drop the oldest pending revision and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- vs:
		default:
		}
	}
}

// Close marks the session closed and closes every subscriber channel.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.log.Debug(context.Background(), "view session closed")
}
