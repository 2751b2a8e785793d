package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/timectrl"
)

type fakeRegistryMetrics struct {
	mu     sync.Mutex
	active int
	frames int
}

func (f *fakeRegistryMetrics) SetActiveSessions(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = n
}

func (f *fakeRegistryMetrics) IncFrames() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
}

func newTestRegistry(t *testing.T) (*Registry, *timectrl.TimeController, *fakeRegistryMetrics) {
	t.Helper()
	store := newTestStore(t, scenarioMunicipalities())
	clock := timectrl.NewTimeController(t0, 16*time.Millisecond, timectrl.Manual)
	metrics := &fakeRegistryMetrics{}
	reg := NewRegistry(NewDispatcher(store, WithClock(clock)), WithRegistryMetrics(metrics))
	return reg, clock, metrics
}

func TestRegistryCreateGetClose(t *testing.T) {
	reg, _, metrics := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Create(ctx, 1000, 700)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if s.ID() == "" || reg.Len() != 1 || metrics.active != 1 {
		t.Fatalf("id %q len %d active %d", s.ID(), reg.Len(), metrics.active)
	}
	got, err := reg.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if !s.Snapshot().UpdatedAt.Equal(t0) {
		t.Fatalf("initial timestamp = %v, want %v", s.Snapshot().UpdatedAt, t0)
	}

	if err := reg.Close(s.ID()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := reg.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after close = %v, want ErrSessionNotFound", err)
	}
	if err := reg.Close(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Close = %v, want ErrSessionNotFound", err)
	}
	if _, err := s.Apply(ctx, Event{Type: EventClear}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Apply on closed session = %v, want ErrSessionClosed", err)
	}
	if metrics.active != 0 {
		t.Fatalf("active = %d, want 0", metrics.active)
	}
}

func TestRegistryCreateRejectsEmptySurface(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	if _, err := reg.Create(context.Background(), 0, 700); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("Create(0x700) = %v, want ErrInvalidEvent", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()
	a, _ := reg.Create(ctx, 1000, 700)
	b, _ := reg.Create(ctx, 600, 500)

	if _, err := a.Apply(ctx, Event{Type: EventSelect, Name: "A"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := b.Snapshot().Selected(); ok {
		t.Fatalf("selection leaked into another session")
	}
	if b.Snapshot().Viewport.Projection.Scale != core.MobileScale {
		t.Fatalf("mobile session scale = %v", b.Snapshot().Viewport.Projection.Scale)
	}
}

func TestSessionSubscribeReceivesRevisions(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()
	s, _ := reg.Create(ctx, 1000, 700)

	ch, cancel := s.Subscribe(4)
	defer cancel()
	if _, err := s.Apply(ctx, Event{Type: EventSelect, Name: "B"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	select {
	case vs := <-ch:
		if name, _ := vs.Selected(); name != "B" || vs.Revision != 1 {
			t.Fatalf("published %q rev %d", name, vs.Revision)
		}
	case <-time.After(time.Second):
		t.Fatalf("no revision published")
	}

	// A rejected event publishes nothing.
	if _, err := s.Apply(ctx, Event{Type: EventSelect, Name: "missing"}); err == nil {
		t.Fatalf("expected error")
	}
	select {
	case vs := <-ch:
		t.Fatalf("unexpected publish of revision %d", vs.Revision)
	default:
	}
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()
	s, _ := reg.Create(ctx, 1000, 700)

	ch, cancel := s.Subscribe(1)
	defer cancel()
	for _, name := range []string{"A", "B", "C"} {
		if _, err := s.Apply(ctx, Event{Type: EventSelect, Name: name}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	vs := <-ch
	if name, _ := vs.Selected(); name != "C" || vs.Revision != 3 {
		t.Fatalf("latest = %q rev %d, want C rev 3", name, vs.Revision)
	}
}

func TestSessionCloseClosesSubscribers(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	s, _ := reg.Create(context.Background(), 1000, 700)
	ch, cancel := s.Subscribe(1)
	if err := reg.Close(s.ID()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("subscriber channel still open")
	}
	cancel()

	late, _ := s.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatalf("subscribe after close returned an open channel")
	}
}

func TestRegistryTickDrivesAnimations(t *testing.T) {
	reg, clock, metrics := newTestRegistry(t)
	ctx := context.Background()
	moving, _ := reg.Create(ctx, 1000, 700)
	idle, _ := reg.Create(ctx, 1000, 700)
	remove := clock.AddListener(reg.Tick)
	defer remove()

	if _, err := moving.Apply(ctx, Event{Type: EventZoomIn}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for moving.Animating() {
		clock.Step()
		if clock.Now().Sub(t0) > time.Second {
			t.Fatalf("animation did not finish")
		}
	}
	if moving.Snapshot().Zoom() != core.ZoomStep {
		t.Fatalf("zoom = %v, want %v", moving.Snapshot().Zoom(), core.ZoomStep)
	}
	if idle.Snapshot().Revision != 0 {
		t.Fatalf("idle session was stepped")
	}
	if metrics.frames == 0 {
		t.Fatalf("no frames counted")
	}
}

func TestRegistryReloadUpdatesSessions(t *testing.T) {
	store := newTestStore(t, scenarioMunicipalities())
	reg := NewRegistry(NewDispatcher(store))
	ctx := context.Background()
	s, _ := reg.Create(ctx, 1000, 700)
	if _, err := s.Apply(ctx, Event{Type: EventHighlightRegion, Region: "western"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	unsubscribe := store.Subscribe(func(kb.Event) { reg.Reload(ctx) })
	defer unsubscribe()
	if err := store.Load(scenarioMunicipalities()[:1], nil); err != nil {
		t.Fatalf("Load: %v", err)
	}

	vs := s.Snapshot()
	if len(vs.Visible) != 1 || vs.Summary == nil || vs.Summary.Count != 1 {
		t.Fatalf("after reload: visible %v summary %+v", vs.Visible, vs.Summary)
	}
}
