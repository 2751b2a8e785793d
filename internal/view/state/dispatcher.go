package state

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/observability"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/model"
	"github.com/signalsfoundry/libya-atlas/timectrl"
)

// Store is the read side of the municipality store the dispatcher needs.
type Store interface {
	GetMunicipality(name string) (model.Municipality, error)
	ListMunicipalities() []model.Municipality
	Summary(r model.Region) kb.RegionSummary
}

// MetricsRecorder receives per-event and per-transition observations.
type MetricsRecorder interface {
	ObserveEvent(eventType string, err error, d time.Duration)
	ObserveTransition(kind, outcome string)
}

// Dispatcher maps (ViewState, Event) to the next ViewState. It holds no
// view state of its own, so one Dispatcher serves every session.
type Dispatcher struct {
	store   Store
	clock   timectrl.Clock
	metrics MetricsRecorder
	log     logging.Logger
}

// DispatcherOption configures optional Dispatcher dependencies.
type DispatcherOption func(*Dispatcher)

// WithClock sets the time source used for events without a timestamp.
func WithClock(c timectrl.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// NewDispatcher returns a dispatcher reading municipalities from store.
func NewDispatcher(store Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store: store,
		clock: timectrl.System(),
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logging.Noop()
	}
	if d.clock == nil {
		d.clock = timectrl.System()
	}
	return d
}

// Store returns the store the dispatcher reads from.
func (d *Dispatcher) Store() Store { return d.store }

// Now returns the dispatcher clock time.
func (d *Dispatcher) Now() time.Time { return d.clock.Now() }

// Dispatch applies ev to vs. On error vs is returned unchanged. The input
// value is never modified.
func (d *Dispatcher) Dispatch(ctx context.Context, vs ViewState, ev Event) (ViewState, error) {
	start := time.Now()
	next, changed, err := d.apply(vs, ev)
	if d.metrics != nil && ev.Type != EventFrame {
		d.metrics.ObserveEvent(string(ev.Type), err, time.Since(start))
	}
	if err != nil {
		logging.FromContext(ctx, d.log).Debug(ctx, "view event rejected",
			logging.String("event", string(ev.Type)),
			logging.Err(err),
		)
		return vs, err
	}
	if !changed {
		return vs, nil
	}
	next.Revision = vs.Revision + 1
	next.UpdatedAt = d.eventTime(ev)
	return next, nil
}

func (d *Dispatcher) eventTime(ev Event) time.Time {
	if !ev.At.IsZero() {
		return ev.At
	}
	return d.clock.Now()
}

func (d *Dispatcher) apply(vs ViewState, ev Event) (ViewState, bool, error) {
	if err := ev.Validate(); err != nil {
		return vs, false, err
	}
	now := d.eventTime(ev)

	switch ev.Type {
	case EventSelect:
		return d.selectMunicipality(vs, ev.Name, ev.Pan, now)
	case EventHighlightRegion:
		return d.highlightRegion(vs, model.ParseRegion(ev.Region), now)
	case EventClear:
		return clearSelection(vs), true, nil
	case EventHover:
		return d.hover(vs, ev.Name)
	case EventUnhover:
		if ev.Name != "" && vs.Hovered != ev.Name {
			return vs, false, nil
		}
		vs.Hovered = ""
		return vs, true, nil
	case EventSearch:
		vs.Search = Search(d.store.ListMunicipalities(), ev.Term)
		return vs, true, nil
	case EventFilterTop:
		vs.Filter = Filter{Mode: FilterModeTopN, N: ev.N}
		return d.refreshVisible(vs), true, nil
	case EventFilterAll:
		vs.Filter = Filter{Mode: FilterModeAll}
		return d.refreshVisible(vs), true, nil
	case EventReload:
		vs = d.refreshVisible(vs)
		vs = d.refreshPanels(vs)
		return vs, true, nil
	case EventZoomIn:
		return d.zoomBy(vs, core.TransitionZoomIn, zoomFactor(ev.Factor), now), true, nil
	case EventZoomOut:
		return d.zoomBy(vs, core.TransitionZoomOut, 1/zoomFactor(ev.Factor), now), true, nil
	case EventResetZoom:
		target := vs.Viewport.Constrain(core.Identity)
		return d.begin(vs, core.TransitionReset, target, now, core.ResetDuration), true, nil
	case EventZoomToSelected:
		return d.zoomToSelected(vs, now)
	case EventCloseInfo:
		vs.Info = nil
		return vs, true, nil
	case EventResize:
		return resize(vs, ev.Width, ev.Height), true, nil
	case EventSetTransform:
		vs.Animator = vs.Animator.Cancel()
		vs.Viewport = vs.Viewport.WithTransform(*ev.Transform)
		return vs, true, nil
	case EventFrame:
		return d.frame(vs, now)
	}
	return vs, false, fmt.Errorf("%w: unhandled type %q", ErrInvalidEvent, ev.Type)
}

func zoomFactor(f float64) float64 {
	if f == 0 {
		return core.ZoomStep
	}
	return f
}

func (d *Dispatcher) selectMunicipality(vs ViewState, name string, pan bool, now time.Time) (ViewState, bool, error) {
	m, err := d.store.GetMunicipality(name)
	if err != nil {
		return vs, false, err
	}
	if !vs.IsVisible(m.Name) {
		// A selection always refers to a drawn marker.
		vs.Filter = Filter{Mode: FilterModeAll}
		vs = d.refreshVisible(vs)
	}

	vs.Selection = Selection{Kind: SelectionMunicipality, Municipality: m.Name}
	vs.Summary = nil
	vs.LabelFor = m.Name
	vs.Info = infoPanel(m)

	if pan {
		current := instantaneous(vs, now)
		x, y := vs.Viewport.Project(m.Lon, m.Lat)
		sx, sy := current.Apply(x, y)
		if !vs.Viewport.IsVisible(sx, sy, core.VisibilityInset) {
			view := vs.Viewport
			view.Transform = current
			vs = d.begin(vs, core.TransitionPan, view.CenteredOn(x, y), now, core.PanDuration)
		}
	}
	return vs, true, nil
}

func (d *Dispatcher) highlightRegion(vs ViewState, r model.Region, now time.Time) (ViewState, bool, error) {
	if current, ok := vs.HighlightedRegion(); ok && current == r {
		return clearSelection(vs), true, nil
	}

	summary := d.store.Summary(r)
	vs.Selection = Selection{Kind: SelectionRegion, Region: r}
	vs.LabelFor = ""
	vs.Info = nil
	vs.Summary = regionPanel(summary)

	if lon, lat, ok := summary.Centroid(); ok {
		current := instantaneous(vs, now)
		x, y := vs.Viewport.Project(lon, lat)
		sx, sy := current.Apply(x, y)
		if !vs.Viewport.IsVisible(sx, sy, 0) {
			view := vs.Viewport
			view.Transform = current
			vs = d.begin(vs, core.TransitionPan, view.CenteredOn(x, y), now, core.PanDuration)
		}
	}
	return vs, true, nil
}

func clearSelection(vs ViewState) ViewState {
	vs.Selection = Selection{Kind: SelectionIdle}
	vs.LabelFor = ""
	vs.Info = nil
	vs.Summary = nil
	return vs
}

func (d *Dispatcher) hover(vs ViewState, name string) (ViewState, bool, error) {
	m, err := d.store.GetMunicipality(name)
	if err != nil {
		return vs, false, err
	}
	if !vs.IsVisible(m.Name) {
		return vs, false, fmt.Errorf("%w: %q is not visible", ErrInvalidEvent, m.Name)
	}
	if vs.Hovered == m.Name {
		return vs, false, nil
	}
	vs.Hovered = m.Name
	return vs, true, nil
}

// refreshVisible recomputes the visible set from the filter and drops any
// selection, hover or label whose municipality is no longer drawn.
func (d *Dispatcher) refreshVisible(vs ViewState) ViewState {
	all := d.store.ListMunicipalities()
	switch vs.Filter.Mode {
	case FilterModeTopN:
		vs.Visible = names(FilterTopN(all, vs.Filter.N))
	default:
		vs.Filter = Filter{Mode: FilterModeAll}
		vs.Visible = names(FilterAll(all))
	}

	if name, ok := vs.Selected(); ok && !vs.IsVisible(name) {
		vs = clearSelection(vs)
	}
	if vs.Hovered != "" && !vs.IsVisible(vs.Hovered) {
		vs.Hovered = ""
	}
	if vs.LabelFor != "" && !vs.IsVisible(vs.LabelFor) {
		vs.LabelFor = ""
	}
	return vs
}

// refreshPanels re-reads panel contents after the store was reloaded.
func (d *Dispatcher) refreshPanels(vs ViewState) ViewState {
	if vs.Info != nil {
		m, err := d.store.GetMunicipality(vs.Info.Name)
		if err != nil {
			vs.Info = nil
		} else {
			vs.Info = infoPanel(m)
		}
	}
	if r, ok := vs.HighlightedRegion(); ok {
		vs.Summary = regionPanel(d.store.Summary(r))
	}
	return vs
}

func (d *Dispatcher) zoomBy(vs ViewState, kind core.TransitionKind, factor float64, now time.Time) ViewState {
	view := vs.Viewport
	view.Transform = instantaneous(vs, now)
	return d.begin(vs, kind, view.ScaledBy(factor), now, core.ZoomStepDuration)
}

func (d *Dispatcher) zoomToSelected(vs ViewState, now time.Time) (ViewState, bool, error) {
	if vs.Info == nil {
		return vs, false, fmt.Errorf("%w: no municipality panel is open", ErrInvalidEvent)
	}
	m, err := d.store.GetMunicipality(vs.Info.Name)
	if err != nil {
		return vs, false, err
	}
	x, y := vs.Viewport.Project(m.Lon, m.Lat)
	vs = d.begin(vs, core.TransitionZoomTo, vs.Viewport.ZoomedTo(x, y, core.ZoomToScale), now, core.ZoomToDuration)
	vs.Info = nil
	return vs, true, nil
}

// begin starts a transition from the instantaneous transform at now,
// replacing any transition in flight.
func (d *Dispatcher) begin(vs ViewState, kind core.TransitionKind, target core.Transform, now time.Time, dur time.Duration) ViewState {
	prev := vs.Animator
	next, superseded := prev.Begin(kind, vs.Viewport.Transform, target, now, dur)
	if d.metrics != nil {
		if superseded {
			d.metrics.ObserveTransition(string(prev.Active.Kind), observability.TransitionSuperseded)
		}
		d.metrics.ObserveTransition(string(kind), observability.TransitionStarted)
	}
	vs.Animator = next
	vs.Viewport.Transform = next.Active.From
	return vs
}

func (d *Dispatcher) frame(vs ViewState, now time.Time) (ViewState, bool, error) {
	next, t, finished, ok := vs.Animator.Step(now)
	if !ok {
		return vs, false, nil
	}
	vs.Animator = next
	vs.Viewport.Transform = t
	if finished && d.metrics != nil {
		d.metrics.ObserveTransition(string(next.Active.Kind), observability.TransitionCompleted)
	}
	return vs, true, nil
}

// resize adapts the viewport and retargets any transition in flight so
// both of its endpoints stay in the resized coordinate frame.
func resize(vs ViewState, width, height float64) ViewState {
	old := vs.Viewport
	remap := func(t core.Transform) core.Transform {
		v := old
		v.Transform = t
		return v.Resized(width, height).Transform
	}

	vs.Viewport = old.Resized(width, height)
	if vs.Animator.Running {
		vs.Animator.Active.From = remap(vs.Animator.Active.From)
		vs.Animator.Active.To = remap(vs.Animator.Active.To)
	}
	return vs
}

// instantaneous returns the transform shown at now, following any
// transition in flight.
func instantaneous(vs ViewState, now time.Time) core.Transform {
	if vs.Animator.Running {
		return vs.Animator.Active.At(now)
	}
	return vs.Viewport.Transform
}

func infoPanel(m model.Municipality) *InfoPanel {
	return &InfoPanel{
		Name:       m.Name,
		Population: m.Population,
		Region:     m.Region,
		RegionName: m.Region.DisplayName(),
		Category:   model.PopulationCategory(m.Population),
	}
}

func regionPanel(s kb.RegionSummary) *RegionPanel {
	return &RegionPanel{
		Region:             s.Region,
		Name:               s.Region.DisplayName(),
		Count:              s.Count,
		TotalPopulation:    s.TotalPopulation,
		OfficialPopulation: s.Region.OfficialPopulation(),
	}
}
