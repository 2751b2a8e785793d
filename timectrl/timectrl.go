package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source view sessions stamp events and animation frames
// with. Depending on the interface keeps animation tests deterministic.
type Clock interface {
	// Now returns the current frame time.
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by the wall clock.
func System() Clock { return systemClock{} }

// Mode describes how the TimeController advances frame time.
type Mode int

const (
	// RealTime advances by Tick on every wall-clock tick.
	RealTime Mode = iota
	// Manual only advances when Step or SetTime is called.
	Manual
)

// TimeController drives frame time and notifies registered listeners.
// It implements Clock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

	nextID    int
	listeners map[int]func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
		listeners:   make(map[int]func(time.Time)),
	}
}

// Now returns the current frame time. Implements Clock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps the current time without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every tick. It returns a
// function that removes the listener.
func (tc *TimeController) AddListener(fn func(time.Time)) (remove func()) {
	tc.mu.Lock()
	id := tc.nextID
	tc.nextID++
	tc.listeners[id] = fn
	tc.mu.Unlock()

	return func() {
		tc.mu.Lock()
		delete(tc.listeners, id)
		tc.mu.Unlock()
	}
}

// Step advances time by one Tick and notifies listeners with the new time.
func (tc *TimeController) Step() time.Time {
	return tc.advance(tc.Tick)
}

// Advance steps forward by d in Tick increments, notifying listeners on
// each step. A remainder shorter than Tick is applied as a final step.
func (tc *TimeController) Advance(d time.Duration) time.Time {
	now := tc.Now()
	for d > 0 {
		step := tc.Tick
		if step <= 0 || step > d {
			step = d
		}
		now = tc.advance(step)
		d -= step
	}
	return now
}

func (tc *TimeController) advance(d time.Duration) time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(d)
	now := tc.currentTime
	fns := make([]func(time.Time), 0, len(tc.listeners))
	for _, fn := range tc.listeners {
		fns = append(fns, fn)
	}
	tc.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
	return now
}

// Start runs a RealTime controller in a separate goroutine until ctx is
// cancelled or, when duration is positive, until duration of frame time
// has elapsed. It returns a channel that is closed when the controller
// finishes. Manual controllers return an already closed channel.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if tc.Mode == Manual || tc.Tick <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			tc.advance(tc.Tick)
			elapsed += tc.Tick
		}
	}()
	return done
}
