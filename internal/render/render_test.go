package render

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/model"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	store := kb.NewKnowledgeBase()
	ms := []model.Municipality{
		{Name: "طرابلس المركز", Population: 180644, Region: model.RegionWestern, Lat: 32.8872, Lon: 13.1913},
		{Name: "بنغازي", Population: 915320, Region: model.RegionEastern, Lat: 32.1167, Lon: 20.0667},
		{Name: "سبها", Population: 202841, Region: model.RegionSouthern, Lat: 27.0377, Lon: 14.4283},
	}
	districts := []model.District{
		{Name: "square", Geometry: orb.Polygon{{{12, 30}, {14, 30}, {14, 32}, {12, 32}, {12, 30}}}},
		{Name: "point", Geometry: orb.Point{15, 27}},
	}
	if err := store.Load(ms, districts); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return store
}

func dispatch(t *testing.T, d *state.Dispatcher, vs state.ViewState, evs ...state.Event) state.ViewState {
	t.Helper()
	for _, ev := range evs {
		next, err := d.Dispatch(context.Background(), vs, ev)
		if err != nil {
			t.Fatalf("Dispatch(%s): %v", ev.Type, err)
		}
		vs = next
	}
	return vs
}

func TestBuildIdleScene(t *testing.T) {
	store := testStore(t)
	sc := Build(state.NewViewState(store, 1000, 700, now), store)

	if len(sc.Markers) != 3 || sc.Label != nil || sc.Info != nil {
		t.Fatalf("markers %d label %+v info %+v", len(sc.Markers), sc.Label, sc.Info)
	}
	for _, m := range sc.Markers {
		if m.Style.State != core.MarkerNormal {
			t.Fatalf("%s state = %v, want normal", m.Name, m.Style.State)
		}
		if m.Style.Radius != core.BaseRadius(m.Population) {
			t.Fatalf("%s radius = %v at zoom 1", m.Name, m.Style.Radius)
		}
	}
	if len(sc.Districts) != 1 || sc.Districts[0].Name != "square" {
		t.Fatalf("districts = %+v", sc.Districts)
	}
	if !strings.HasPrefix(sc.Districts[0].D, "M") || !strings.HasSuffix(sc.Districts[0].D, "Z") {
		t.Fatalf("path data = %q", sc.Districts[0].D)
	}
	if len(sc.Countries) != len(model.NeighborCountries) {
		t.Fatalf("countries = %d", len(sc.Countries))
	}
}

func TestBuildSelectedMarkerDrawnLastWithLabel(t *testing.T) {
	store := testStore(t)
	d := state.NewDispatcher(store)
	vs := dispatch(t, d, state.NewViewState(store, 1000, 700, now),
		state.Event{Type: state.EventSelect, Name: "طرابلس المركز"},
		state.Event{Type: state.EventHover, Name: "سبها"},
	)
	sc := Build(vs, store)

	last := sc.Markers[len(sc.Markers)-1]
	if last.Name != "طرابلس المركز" || last.Style.State != core.MarkerSelected {
		t.Fatalf("last marker = %s (%v), want selected", last.Name, last.Style.State)
	}
	if sc.Markers[len(sc.Markers)-2].Style.State != core.MarkerHovered {
		t.Fatalf("hovered marker should precede the selected one")
	}
	if sc.Label == nil || sc.Label.Owner != "طرابلس المركز" {
		t.Fatalf("label = %+v", sc.Label)
	}
	m, err := store.GetMunicipality(last.Name)
	if err != nil {
		t.Fatalf("GetMunicipality: %v", err)
	}
	want := core.LabelGeometryFor(vs.Viewport.Projection, m, vs.Zoom())
	if *sc.Label != want {
		t.Fatalf("label = %+v, want %+v", *sc.Label, want)
	}
}

func TestBuildFollowsZoomAndFilter(t *testing.T) {
	store := testStore(t)
	d := state.NewDispatcher(store)
	k := core.Transform{K: 4}
	vs := dispatch(t, d, state.NewViewState(store, 1000, 700, now),
		state.Event{Type: state.EventSetTransform, Transform: &k},
		state.Event{Type: state.EventFilterTop, N: 1},
	)
	sc := Build(vs, store)
	if len(sc.Markers) != 1 || sc.Markers[0].Name != "بنغازي" {
		t.Fatalf("markers = %+v", sc.Markers)
	}
	if sc.Zoom != 4 || sc.Markers[0].Style.Radius != core.EffectiveRadius(915320, 4) {
		t.Fatalf("zoom %v radius %v", sc.Zoom, sc.Markers[0].Style.Radius)
	}
}

func TestWriteSVGIsWellFormed(t *testing.T) {
	store := testStore(t)
	d := state.NewDispatcher(store)
	vs := dispatch(t, d, state.NewViewState(store, 1000, 700, now),
		state.Event{Type: state.EventSelect, Name: "بنغازي"},
	)
	var buf bytes.Buffer
	if err := WriteSVG(&buf, Build(vs, store)); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(buf.Bytes()))
	circles, texts := 0, 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch se.Name.Local {
			case "circle":
				circles++
			case "text":
				texts++
			}
		}
	}
	if circles != 3 {
		t.Fatalf("circles = %d, want 3", circles)
	}
	if texts != len(model.NeighborCountries)+1 {
		t.Fatalf("texts = %d, want %d", texts, len(model.NeighborCountries)+1)
	}
	out := buf.String()
	if !strings.Contains(out, `class="selected"`) || !strings.Contains(out, `class="leader"`) {
		t.Fatalf("selected marker or leader line missing:\n%s", out)
	}
}

func TestNumFormatting(t *testing.T) {
	cases := map[float64]string{0: "0", 10: "10", 1.5: "1.5", -0.0001: "0", 2.3456: "2.346"}
	for in, want := range cases {
		if got := num(in); got != want {
			t.Fatalf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
