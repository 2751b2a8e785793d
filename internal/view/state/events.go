package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/model"
)

var (
	// ErrInvalidEvent indicates an event that is malformed or not
	// applicable to the current view state.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrSessionNotFound indicates a requested view session is absent.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed indicates an event for a session that was closed.
	ErrSessionClosed = errors.New("session closed")
)

// EventType names an input event.
type EventType string

const (
	EventSelect          EventType = "select"
	EventHighlightRegion EventType = "highlight_region"
	EventClear           EventType = "clear"
	EventHover           EventType = "hover"
	EventUnhover         EventType = "unhover"
	EventSearch          EventType = "search"
	EventFilterTop       EventType = "filter_top"
	EventFilterAll       EventType = "filter_all"
	EventZoomIn          EventType = "zoom_in"
	EventZoomOut         EventType = "zoom_out"
	EventResetZoom       EventType = "reset_zoom"
	EventZoomToSelected  EventType = "zoom_to_selected"
	EventCloseInfo       EventType = "close_info"
	EventResize          EventType = "resize"
	EventSetTransform    EventType = "set_transform"
	EventFrame           EventType = "frame"
	EventReload          EventType = "reload"
)

// EventTypes lists every event the dispatcher understands.
var EventTypes = []EventType{
	EventSelect, EventHighlightRegion, EventClear, EventHover, EventUnhover,
	EventSearch, EventFilterTop, EventFilterAll, EventZoomIn, EventZoomOut,
	EventResetZoom, EventZoomToSelected, EventCloseInfo, EventResize,
	EventSetTransform, EventFrame, EventReload,
}

// Event is one input to the dispatcher. Only the fields relevant to Type
// are read.
type Event struct {
	Type EventType `json:"type"`

	// Name is the municipality for select, hover and unhover.
	Name string `json:"name,omitempty"`
	// Pan asks select to bring the municipality into view.
	Pan bool `json:"pan,omitempty"`
	// Region is a region label for highlight_region.
	Region string `json:"region,omitempty"`
	// Term is the search term.
	Term string `json:"term,omitempty"`
	// N is the filter_top size.
	N int `json:"n,omitempty"`
	// Factor overrides the zoom step for zoom_in and zoom_out; it must be
	// greater than 1 and zoom_out applies its inverse.
	Factor float64 `json:"factor,omitempty"`

	Width     float64         `json:"width,omitempty"`
	Height    float64         `json:"height,omitempty"`
	Transform *core.Transform `json:"transform,omitempty"`

	// At is the event time; the dispatcher clock is used when zero.
	At time.Time `json:"at,omitempty"`
}

// Validate checks that the fields Type needs are present and well formed.
func (ev Event) Validate() error {
	switch ev.Type {
	case EventSelect, EventHover:
		if ev.Name == "" {
			return fmt.Errorf("%w: %s requires a name", ErrInvalidEvent, ev.Type)
		}
	case EventHighlightRegion:
		if model.ParseRegion(ev.Region) == model.RegionUnknown {
			return fmt.Errorf("%w: unknown region %q", ErrInvalidEvent, ev.Region)
		}
	case EventZoomIn, EventZoomOut:
		if ev.Factor != 0 && ev.Factor <= 1 {
			return fmt.Errorf("%w: zoom factor %v", ErrInvalidEvent, ev.Factor)
		}
	case EventResize:
		if ev.Width <= 0 || ev.Height <= 0 {
			return fmt.Errorf("%w: resize to %vx%v", ErrInvalidEvent, ev.Width, ev.Height)
		}
	case EventSetTransform:
		if ev.Transform == nil || ev.Transform.K <= 0 {
			return fmt.Errorf("%w: set_transform requires a transform with k > 0", ErrInvalidEvent)
		}
	case EventFilterTop:
		if ev.N <= 0 {
			return fmt.Errorf("%w: filter_top requires n > 0, got %d", ErrInvalidEvent, ev.N)
		}
	case EventClear, EventUnhover, EventSearch, EventFilterAll,
		EventResetZoom, EventZoomToSelected, EventCloseInfo, EventFrame, EventReload:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return nil
}
