package core

// Viewport owns the projection, the current pan/zoom transform and the
// surface dimensions. Methods never mutate the receiver; they return the
// new value so callers can thread it through their view state.
type Viewport struct {
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Projection Projection `json:"projection"`
	Transform  Transform  `json:"transform"`
}

// NewViewport returns an untransformed viewport of the given size.
func NewViewport(width, height float64) Viewport {
	return Viewport{
		Width:      width,
		Height:     height,
		Projection: NewProjection(width, height),
		Transform:  Identity,
	}
}

// ZoomFactor returns the current zoom, always > 0.
func (v Viewport) ZoomFactor() float64 {
	if v.Transform.K <= 0 {
		return 1
	}
	return v.Transform.K
}

// Project maps degrees to untransformed map coordinates.
func (v Viewport) Project(lon, lat float64) (float64, float64) {
	return v.Projection.Project(lon, lat)
}

// ScreenPosition maps degrees all the way to screen coordinates.
func (v Viewport) ScreenPosition(lon, lat float64) (float64, float64) {
	x, y := v.Projection.Project(lon, lat)
	return v.Transform.Apply(x, y)
}

// IsVisible reports whether a screen point lies inside the surface, inset
// by margin on every side.
func (v Viewport) IsVisible(sx, sy, margin float64) bool {
	return sx >= margin && sx <= v.Width-margin && sy >= margin && sy <= v.Height-margin
}

// TranslateExtent returns the pan bounds in map coordinates: the surface
// grown by half its size in each direction.
func (v Viewport) TranslateExtent() (x0, y0, x1, y1 float64) {
	return -v.Width * 0.5, -v.Height * 0.5, v.Width * 1.5, v.Height * 1.5
}

// Constrain clamps the zoom to the scale extent and shifts the transform
// so the visible area stays within the translate extent. When the visible
// area is larger than the extent on an axis it is centred on that axis.
func (v Viewport) Constrain(t Transform) Transform {
	if t.K <= 0 {
		t.K = 1
	}
	if k := ClampZoom(t.K); k != t.K {
		// Re-anchor on the surface centre so clamping does not jump the view.
		cx, cy := t.Invert(v.Width/2, v.Height/2)
		t = Transform{K: k, X: v.Width/2 - cx*k, Y: v.Height/2 - cy*k}
	}

	ex0, ey0, ex1, ey1 := v.TranslateExtent()
	vx0, vy0 := t.Invert(0, 0)
	vx1, vy1 := t.Invert(v.Width, v.Height)
	dx0, dx1 := vx0-ex0, vx1-ex1
	dy0, dy1 := vy0-ey0, vy1-ey1

	return t.Translate(constrainAxis(dx0, dx1), constrainAxis(dy0, dy1))
}

func constrainAxis(d0, d1 float64) float64 {
	if d1 > d0 {
		return (d0 + d1) / 2
	}
	if d0 < 0 {
		return d0
	}
	if d1 > 0 {
		return d1
	}
	return 0
}

// WithTransform returns the viewport with t applied after constraining.
func (v Viewport) WithTransform(t Transform) Viewport {
	v.Transform = v.Constrain(t)
	return v
}

// ScaledBy returns the transform that zooms by factor about the surface
// centre.
func (v Viewport) ScaledBy(factor float64) Transform {
	t := v.Transform
	k := ClampZoom(v.ZoomFactor() * factor)
	px, py := v.Width/2, v.Height/2
	mx, my := t.Invert(px, py)
	return v.Constrain(Transform{K: k, X: px - mx*k, Y: py - my*k})
}

// CenteredOn returns the transform that puts map point (x, y) at the
// surface centre at the current zoom.
func (v Viewport) CenteredOn(x, y float64) Transform {
	return v.ZoomedTo(x, y, v.ZoomFactor())
}

// ZoomedTo returns the transform that puts map point (x, y) at the
// surface centre at zoom k.
func (v Viewport) ZoomedTo(x, y, k float64) Transform {
	k = ClampZoom(k)
	return v.Constrain(Transform{K: k, X: v.Width/2 - x*k, Y: v.Height/2 - y*k})
}

// Resized adapts the viewport to a new surface size. The projection scale
// follows the layout breakpoint and the translation is solved so the
// geographic point that was at the old surface centre sits at the new one.
// The zoom factor is preserved. With K = 1 this reduces to scaling the
// translation by the scale ratio.
func (v Viewport) Resized(width, height float64) Viewport {
	current := v.Transform
	k := v.ZoomFactor()
	ratio := 1.0
	newScale := BaseScale(width)
	if v.Projection.Scale > 0 {
		ratio = newScale / v.Projection.Scale
	}

	next := Viewport{
		Width:  width,
		Height: height,
		Projection: Projection{
			CenterLon:  v.Projection.CenterLon,
			CenterLat:  v.Projection.CenterLat,
			Scale:      newScale,
			TranslateX: width / 2,
			TranslateY: height / 2,
		},
	}
	next.Transform = next.Constrain(Transform{
		K: k,
		X: current.X*ratio + (1-k)*(width/2-ratio*v.Width/2),
		Y: current.Y*ratio + (1-k)*(height/2-ratio*v.Height/2),
	})
	return next
}
