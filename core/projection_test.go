package core

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestBaseScaleBreakpoint(t *testing.T) {
	cases := []struct {
		width float64
		want  float64
	}{
		{320, MobileScale},
		{768, MobileScale},
		{769, DesktopScale},
		{1440, DesktopScale},
	}
	for _, tc := range cases {
		if got := BaseScale(tc.width); got != tc.want {
			t.Fatalf("BaseScale(%v) = %v, want %v", tc.width, got, tc.want)
		}
	}
}

func TestProjectionCentreMapsToTranslate(t *testing.T) {
	p := NewProjection(1000, 700)
	x, y := p.Project(CenterLon, CenterLat)
	if math.Abs(x-500) > eps || math.Abs(y-350) > eps {
		t.Fatalf("Project(centre) = (%v, %v), want (500, 350)", x, y)
	}
}

func TestProjectionOrientation(t *testing.T) {
	p := NewProjection(1000, 700)
	// Benghazi is east of and north of the reference point.
	x, y := p.Project(20.0667, 32.1167)
	if x <= 500 {
		t.Fatalf("eastern point projected to x=%v, want > 500", x)
	}
	if y >= 350 {
		t.Fatalf("northern point projected to y=%v, want < 350", y)
	}
}

func TestProjectionDeterministicAndInvertible(t *testing.T) {
	p := NewProjection(1000, 700)
	x1, y1 := p.Project(13.1843, 32.8757)
	x2, y2 := p.Project(13.1843, 32.8757)
	if x1 != x2 || y1 != y2 {
		t.Fatalf("Project not deterministic: (%v,%v) vs (%v,%v)", x1, y1, x2, y2)
	}

	lon, lat := p.Invert(x1, y1)
	if !approx(lon, 13.1843) || !approx(lat, 32.8757) {
		t.Fatalf("Invert(Project(p)) = (%v, %v), want (13.1843, 32.8757)", lon, lat)
	}
}

func TestProjectionScaleFollowsWidth(t *testing.T) {
	mobile := NewProjection(600, 800)
	desktop := NewProjection(1200, 800)
	mx, _ := mobile.Project(20, CenterLat)
	dx, _ := desktop.Project(20, CenterLat)
	if got, want := (dx-600)/(mx-300), DesktopScale/MobileScale; !approx(got, want) {
		t.Fatalf("offset ratio = %v, want %v", got, want)
	}
}
