// Package render turns a view state into a drawable scene: district
// outlines, population markers, the single selection label and the side
// panels. Scenes are plain data; WriteSVG and the transports serialise them.
package render

import (
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/model"
)

// SimplifyThreshold is the Douglas-Peucker tolerance, in map units, applied
// to projected district outlines.
const SimplifyThreshold = 0.5

// Source is the store view a scene is built from.
type Source interface {
	ListMunicipalities() []model.Municipality
	ListDistricts() []model.District
}

// Marker is one drawn municipality in map coordinates.
type Marker struct {
	Name       string           `json:"name"`
	Region     model.Region     `json:"region"`
	Population int              `json:"population"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Style      core.MarkerStyle `json:"style"`
}

// DistrictPath is a projected district outline as SVG path data.
type DistrictPath struct {
	Name string `json:"name"`
	D    string `json:"d"`
}

// Text is a static label in map coordinates.
type Text struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Scene is everything needed to draw one view. Geometry is in map
// coordinates; Transform maps it onto the Width x Height surface.
type Scene struct {
	Width     float64        `json:"width"`
	Height    float64        `json:"height"`
	Transform core.Transform `json:"transform"`
	Zoom      float64        `json:"zoom"`
	Animating bool           `json:"animating"`
	Revision  uint64         `json:"revision"`

	Districts []DistrictPath      `json:"districts"`
	Countries []Text              `json:"countries"`
	Markers   []Marker            `json:"markers"`
	Label     *core.LabelGeometry `json:"label,omitempty"`
	Selection state.Selection     `json:"selection"`
	Info      *state.InfoPanel    `json:"info,omitempty"`
	Summary   *state.RegionPanel  `json:"summary,omitempty"`
	Search    state.SearchResults `json:"search"`
	Filter    state.Filter        `json:"filter"`
}

// Build derives the scene for vs. Markers follow load order except that
// hovered and selected markers are drawn last so they sit on top.
func Build(vs state.ViewState, src Source) Scene {
	v := vs.Viewport
	zoom := v.ZoomFactor()

	sc := Scene{
		Width:     v.Width,
		Height:    v.Height,
		Transform: v.Transform,
		Zoom:      zoom,
		Animating: vs.Animator.Running,
		Revision:  vs.Revision,
		Selection: vs.Selection,
		Info:      vs.Info,
		Summary:   vs.Summary,
		Search:    vs.Search,
		Filter:    vs.Filter,
		Districts: districtPaths(v.Projection, src.ListDistricts()),
		Countries: countryLabels(v.Projection),
		Markers:   []Marker{},
	}

	visible := make(map[string]struct{}, len(vs.Visible))
	for _, name := range vs.Visible {
		visible[name] = struct{}{}
	}
	for _, m := range src.ListMunicipalities() {
		if _, ok := visible[m.Name]; !ok {
			continue
		}
		x, y := v.Project(m.Lon, m.Lat)
		sc.Markers = append(sc.Markers, Marker{
			Name:       m.Name,
			Region:     m.Region,
			Population: m.Population,
			X:          x,
			Y:          y,
			Style:      core.StyleMarker(m.Population, zoom, vs.MarkerState(m)),
		})
		if m.Name == vs.LabelFor {
			label := core.LabelGeometryFor(v.Projection, m, zoom)
			sc.Label = &label
		}
	}
	sort.SliceStable(sc.Markers, func(i, j int) bool {
		return drawRank(sc.Markers[i].Style.State) < drawRank(sc.Markers[j].Style.State)
	})
	return sc
}

func drawRank(s core.MarkerState) int {
	switch s {
	case core.MarkerSelected:
		return 2
	case core.MarkerHovered:
		return 1
	default:
		return 0
	}
}

func countryLabels(p core.Projection) []Text {
	out := make([]Text, 0, len(model.NeighborCountries))
	for _, c := range model.NeighborCountries {
		x, y := p.Project(c.Lon, c.Lat)
		out = append(out, Text{Text: c.Name, X: x, Y: y})
	}
	return out
}

func districtPaths(p core.Projection, districts []model.District) []DistrictPath {
	out := make([]DistrictPath, 0, len(districts))
	simplifier := simplify.DouglasPeucker(SimplifyThreshold)
	for _, d := range districts {
		if d.Geometry == nil {
			continue
		}
		projected := projectGeometry(p, d.Geometry)
		if projected == nil {
			continue
		}
		data := pathData(simplifier.Simplify(projected))
		if data == "" {
			continue
		}
		out = append(out, DistrictPath{Name: d.Name, D: data})
	}
	return out
}

// projectGeometry returns a copy of g in map coordinates. Points carry no
// outline and yield nil.
func projectGeometry(p core.Projection, g orb.Geometry) orb.Geometry {
	pt := func(in orb.Point) orb.Point {
		x, y := p.Project(in.Lon(), in.Lat())
		return orb.Point{x, y}
	}
	line := func(in []orb.Point) []orb.Point {
		out := make([]orb.Point, len(in))
		for i, q := range in {
			out[i] = pt(q)
		}
		return out
	}
	polygon := func(in orb.Polygon) orb.Polygon {
		out := make(orb.Polygon, len(in))
		for i, r := range in {
			out[i] = orb.Ring(line(r))
		}
		return out
	}

	switch g := g.(type) {
	case orb.LineString:
		return orb.LineString(line(g))
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			out[i] = orb.LineString(line(ls))
		}
		return out
	case orb.Ring:
		return orb.Ring(line(g))
	case orb.Polygon:
		return polygon(g)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, poly := range g {
			out[i] = polygon(poly)
		}
		return out
	case orb.Collection:
		var out orb.Collection
		for _, child := range g {
			if c := projectGeometry(p, child); c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case orb.Bound:
		return polygon(g.ToPolygon())
	}
	return nil
}

// pathData encodes projected geometry as SVG path data. Rings are closed.
func pathData(g orb.Geometry) string {
	var b strings.Builder
	writePath(&b, g)
	return strings.TrimSpace(b.String())
}

func writePath(b *strings.Builder, g orb.Geometry) {
	switch g := g.(type) {
	case orb.LineString:
		writePoints(b, g, false)
	case orb.MultiLineString:
		for _, ls := range g {
			writePoints(b, ls, false)
		}
	case orb.Ring:
		writePoints(b, g, true)
	case orb.Polygon:
		for _, r := range g {
			writePoints(b, r, true)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			writePath(b, poly)
		}
	case orb.Collection:
		for _, child := range g {
			writePath(b, child)
		}
	}
}

func writePoints(b *strings.Builder, pts []orb.Point, closed bool) {
	if len(pts) < 2 {
		return
	}
	for i, q := range pts {
		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString("L")
		}
		b.WriteString(formatCoord(q[0]))
		b.WriteByte(',')
		b.WriteString(formatCoord(q[1]))
	}
	if closed {
		b.WriteString("Z")
	}
	b.WriteByte(' ')
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
