package core

import "time"

// Durations of the animated view changes.
const (
	ZoomStepDuration = 300 * time.Millisecond
	ResetDuration    = 500 * time.Millisecond
	PanDuration      = 500 * time.Millisecond
	ZoomToDuration   = 1000 * time.Millisecond
)

// Zoom parameters of the map controls.
const (
	ZoomStep        = 1.5
	ZoomToScale     = 4.0
	VisibilityInset = 50.0
)

// TransitionKind names the user action that started a transition.
type TransitionKind string

const (
	TransitionZoomIn  TransitionKind = "zoom_in"
	TransitionZoomOut TransitionKind = "zoom_out"
	TransitionReset   TransitionKind = "reset"
	TransitionPan     TransitionKind = "pan"
	TransitionZoomTo  TransitionKind = "zoom_to"
)

// Transition interpolates the view transform between two values over a
// fixed duration.
type Transition struct {
	Kind     TransitionKind `json:"kind"`
	From     Transform      `json:"from"`
	To       Transform      `json:"to"`
	Start    time.Time      `json:"start"`
	Duration time.Duration  `json:"duration"`
}

// Progress returns the linear progress of the transition at now, in [0, 1].
func (tr Transition) Progress(now time.Time) float64 {
	if tr.Duration <= 0 {
		return 1
	}
	p := float64(now.Sub(tr.Start)) / float64(tr.Duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// At returns the eased transform at now.
func (tr Transition) At(now time.Time) Transform {
	return Lerp(tr.From, tr.To, EaseCubicInOut(tr.Progress(now)))
}

// Done reports whether the transition has reached its target at now.
func (tr Transition) Done(now time.Time) bool {
	return tr.Progress(now) >= 1
}

// EaseCubicInOut is the symmetric cubic easing curve.
func EaseCubicInOut(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}

// Animator holds at most one in-flight transition. It is a value type so
// it travels inside the view state it animates.
type Animator struct {
	Active  Transition `json:"active"`
	Running bool       `json:"running"`
}

// Begin starts a transition toward target. A running transition is
// replaced, and the new one starts from the instantaneous transform of the
// old one at now; otherwise it starts from current. The returned flag
// reports whether a running transition was superseded.
func (a Animator) Begin(kind TransitionKind, current, target Transform, now time.Time, d time.Duration) (Animator, bool) {
	from := current
	superseded := false
	if a.Running {
		from = a.Active.At(now)
		superseded = true
	}
	return Animator{
		Active: Transition{
			Kind:     kind,
			From:     from,
			To:       target,
			Start:    now,
			Duration: d,
		},
		Running: true,
	}, superseded
}

// Step advances the animator to now. It returns the transform to show and
// whether the transition finished on this step. ok is false when there is
// nothing in flight.
func (a Animator) Step(now time.Time) (next Animator, t Transform, finished, ok bool) {
	if !a.Running {
		return a, Transform{}, false, false
	}
	t = a.Active.At(now)
	if a.Active.Done(now) {
		a.Running = false
		return a, a.Active.To, true, true
	}
	return a, t, false, true
}

// Cancel drops any in-flight transition, leaving the view where it is.
func (a Animator) Cancel() Animator {
	a.Running = false
	return a
}
