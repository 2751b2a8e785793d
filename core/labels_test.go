package core

import (
	"testing"

	"github.com/signalsfoundry/libya-atlas/model"
)

func TestLabelGeometryAtIdentity(t *testing.T) {
	p := NewProjection(1000, 700)
	m := model.Municipality{Name: "مركز", Population: 915320, Lat: CenterLat, Lon: CenterLon}

	g := LabelGeometryFor(p, m, 1)
	if g.Owner != m.Name || g.Label.Text != m.Name {
		t.Fatalf("label owner/text = %q/%q, want %q", g.Owner, g.Label.Text, m.Name)
	}
	if !approx(g.Leader.X1, 500) || !approx(g.Leader.Y1, 350) || !approx(g.Leader.X2, 500) {
		t.Fatalf("leader start = (%v,%v) end x %v", g.Leader.X1, g.Leader.Y1, g.Leader.X2)
	}
	if !approx(g.Leader.Y2, 350-27) || g.Leader.StrokeWidth != 2.5 {
		t.Fatalf("leader end y = %v width %v, want 323 / 2.5", g.Leader.Y2, g.Leader.StrokeWidth)
	}
	if !approx(g.Label.X, 500) || !approx(g.Label.Y, 350-32) || g.Label.FontSize != 16 {
		t.Fatalf("label = %+v, want (500, 318) size 16", g.Label)
	}
}

func TestLabelGeometryShrinksWithZoom(t *testing.T) {
	p := NewProjection(1000, 700)
	m := model.Municipality{Name: "مركز", Population: 915320, Lat: CenterLat, Lon: CenterLon}

	g := LabelGeometryFor(p, m, 4)
	if !approx(g.Leader.Y2, 350-(15+3.6)) {
		t.Fatalf("leader end y = %v, want %v", g.Leader.Y2, 350-18.6)
	}
	if !approx(g.Label.Y, 350-(20+3.6)) {
		t.Fatalf("label y = %v, want %v", g.Label.Y, 350-23.6)
	}
	if g.Label.FontSize != MinLabelFontSize || g.Leader.StrokeWidth != 1.5 {
		t.Fatalf("font %v width %v, want minimums", g.Label.FontSize, g.Leader.StrokeWidth)
	}
}

func TestLabelAboveMarkerEdge(t *testing.T) {
	p := NewProjection(1000, 700)
	m := model.Municipality{Name: "سبها", Population: 202841, Lat: 27.0333, Lon: 14.4333}
	for _, zoom := range []float64{0.5, 1, 1.5, 3, 8} {
		g := LabelGeometryFor(p, m, zoom)
		edge := g.Leader.Y1 - EffectiveRadius(m.Population, zoom)
		if g.Leader.Y2 >= edge || g.Label.Y >= g.Leader.Y2 {
			t.Fatalf("zoom %v: edge %v leader end %v label %v", zoom, edge, g.Leader.Y2, g.Label.Y)
		}
	}
}
