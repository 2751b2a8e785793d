package httpapi

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
)

type createSessionRequest struct {
	Width  float64 `json:"width" validate:"omitempty,gt=0,lte=16384"`
	Height float64 `json:"height" validate:"omitempty,gt=0,lte=16384"`
}

type createSessionResponse struct {
	ID    string       `json:"id"`
	Scene render.Scene `json:"scene"`
}

// eventRequest is the client form of state.Event. Frame events are
// produced by the server clock and rejected here.
type eventRequest struct {
	Type      string          `json:"type" validate:"required,max=32"`
	Name      string          `json:"name" validate:"max=200"`
	Pan       bool            `json:"pan"`
	Region    string          `json:"region" validate:"max=100"`
	Term      string          `json:"term" validate:"max=200"`
	N         int             `json:"n" validate:"gte=0,lte=10000"`
	Factor    float64         `json:"factor" validate:"gte=0"`
	Width     float64         `json:"width" validate:"gte=0,lte=16384"`
	Height    float64         `json:"height" validate:"gte=0,lte=16384"`
	Transform *core.Transform `json:"transform"`
}

func (r eventRequest) toEvent() (state.Event, error) {
	if state.EventType(r.Type) == state.EventFrame {
		return state.Event{}, fmt.Errorf("%w: frame events are not accepted from clients", ErrBadRequest)
	}
	return state.Event{
		Type:      state.EventType(r.Type),
		Name:      r.Name,
		Pan:       r.Pan,
		Region:    r.Region,
		Term:      r.Term,
		N:         r.N,
		Factor:    r.Factor,
		Width:     r.Width,
		Height:    r.Height,
		Transform: r.Transform,
	}, nil
}

type regionResponse struct {
	Slug               string     `json:"slug"`
	Name               string     `json:"name"`
	EnglishName        string     `json:"english_name"`
	Count              int        `json:"count"`
	TotalPopulation    int        `json:"total_population"`
	OfficialPopulation int        `json:"official_population"`
	Bound              [4]float64 `json:"bbox"`
}

// Message types on the websocket stream.
const (
	wsTypeScene = "scene"
	wsTypeError = "error"
)

type wsMessage struct {
	Type      string        `json:"type"`
	Scene     *render.Scene `json:"scene,omitempty"`
	Error     string        `json:"error,omitempty"`
	Code      int           `json:"code,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
