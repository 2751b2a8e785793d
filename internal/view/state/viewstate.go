package state

import (
	"time"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/model"
)

// SelectionKind is the state of the selection machine.
type SelectionKind int

const (
	SelectionIdle SelectionKind = iota
	SelectionMunicipality
	SelectionRegion
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionMunicipality:
		return "municipality_selected"
	case SelectionRegion:
		return "region_highlighted"
	default:
		return "idle"
	}
}

// MarshalText encodes the kind by name.
func (k SelectionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name; unknown names are idle.
func (k *SelectionKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "municipality_selected":
		*k = SelectionMunicipality
	case "region_highlighted":
		*k = SelectionRegion
	default:
		*k = SelectionIdle
	}
	return nil
}

// Selection is Idle, MunicipalitySelected(Municipality) or
// RegionHighlighted(Region). Only the field matching Kind is meaningful.
type Selection struct {
	Kind         SelectionKind `json:"kind"`
	Municipality string        `json:"municipality,omitempty"`
	Region       model.Region  `json:"region,omitempty"`
}

// InfoPanel describes the selected municipality.
type InfoPanel struct {
	Name       string       `json:"name"`
	Population int          `json:"population"`
	Region     model.Region `json:"region"`
	RegionName string       `json:"region_name"`
	Category   string       `json:"category"`
}

// RegionPanel summarises a highlighted region.
type RegionPanel struct {
	Region             model.Region `json:"region"`
	Name               string       `json:"name"`
	Count              int          `json:"count"`
	TotalPopulation    int          `json:"total_population"`
	OfficialPopulation int          `json:"official_population"`
}

// FilterMode selects which municipalities are drawn.
type FilterMode string

const (
	FilterModeAll  FilterMode = "all"
	FilterModeTopN FilterMode = "top_n"
)

// Filter is the active visible-set filter.
type Filter struct {
	Mode FilterMode `json:"mode"`
	N    int        `json:"n,omitempty"`
}

// ViewState is everything one map view shows. It is passed and returned by
// value; slices and panels are replaced, never mutated, so an older
// ViewState stays valid after a dispatch.
type ViewState struct {
	Viewport  core.Viewport `json:"viewport"`
	Animator  core.Animator `json:"animator"`
	Selection Selection     `json:"selection"`
	Hovered   string        `json:"hovered,omitempty"`

	// LabelFor names the municipality that owns the single label and
	// leader line, or is empty when none is shown.
	LabelFor string `json:"label_for,omitempty"`

	Info    *InfoPanel    `json:"info,omitempty"`
	Summary *RegionPanel  `json:"summary,omitempty"`
	Search  SearchResults `json:"search"`

	Filter  Filter   `json:"filter"`
	Visible []string `json:"visible"`

	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewViewState returns the initial idle view of every municipality in
// store on a width x height surface.
func NewViewState(store Store, width, height float64, now time.Time) ViewState {
	return ViewState{
		Viewport:  core.NewViewport(width, height),
		Filter:    Filter{Mode: FilterModeAll},
		Visible:   names(FilterAll(store.ListMunicipalities())),
		Search:    SearchResults{Cleared: true},
		UpdatedAt: now,
	}
}

// Zoom returns the zoom factor currently shown.
func (vs ViewState) Zoom() float64 {
	return vs.Viewport.ZoomFactor()
}

// IsVisible reports whether name is in the visible set.
func (vs ViewState) IsVisible(name string) bool {
	for _, v := range vs.Visible {
		if v == name {
			return true
		}
	}
	return false
}

// Selected returns the selected municipality name, if any.
func (vs ViewState) Selected() (string, bool) {
	if vs.Selection.Kind != SelectionMunicipality {
		return "", false
	}
	return vs.Selection.Municipality, true
}

// HighlightedRegion returns the highlighted region, if any.
func (vs ViewState) HighlightedRegion() (model.Region, bool) {
	if vs.Selection.Kind != SelectionRegion {
		return model.RegionUnknown, false
	}
	return vs.Selection.Region, true
}

// MarkerState derives the styling state of m. Selection takes precedence
// over hover, and hover over region highlighting.
func (vs ViewState) MarkerState(m model.Municipality) core.MarkerState {
	switch {
	case vs.Selection.Kind == SelectionMunicipality && vs.Selection.Municipality == m.Name:
		return core.MarkerSelected
	case vs.Hovered == m.Name:
		return core.MarkerHovered
	case vs.Selection.Kind == SelectionRegion && vs.Selection.Region == m.Region:
		return core.MarkerHighlighted
	default:
		return core.MarkerNormal
	}
}

func names(ms []model.Municipality) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}
