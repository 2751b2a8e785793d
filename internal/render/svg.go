package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/libya-atlas/core"
)

// Surface colours of the SVG output.
const (
	backgroundFill = "#F4EFE6"
	districtStroke = "#B8AC99"
	countryFill    = "#8C8273"
	labelFill      = "#1F1A14"
	leaderStroke   = "#3F3223"
)

// WriteSVG writes sc as a standalone SVG document.
func WriteSVG(w io.Writer, sc Scene) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}
	t := sc.Transform
	if t.K <= 0 {
		t = core.Identity
	}
	// Strokes are divided by K so outlines keep their screen width.
	inv := 1 / t.K

	p(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" direction="rtl">`+"\n",
		num(sc.Width), num(sc.Height), num(sc.Width), num(sc.Height))
	p(`<rect width="%s" height="%s" fill="%s"/>`+"\n", num(sc.Width), num(sc.Height), backgroundFill)
	p(`<g transform="translate(%s,%s) scale(%s)">`+"\n", num(t.X), num(t.Y), num(t.K))

	p(`<g class="districts" fill="none" stroke="%s" stroke-width="%s">`+"\n", districtStroke, num(inv))
	for _, d := range sc.Districts {
		p(`<path data-name="%s" d="%s"/>`+"\n", escape(d.Name), d.D)
	}
	p("</g>\n")

	p(`<g class="countries" fill="%s" font-size="%s" text-anchor="middle">`+"\n", countryFill, num(14*inv))
	for _, c := range sc.Countries {
		p(`<text x="%s" y="%s">%s</text>`+"\n", num(c.X), num(c.Y), escape(c.Text))
	}
	p("</g>\n")

	p(`<g class="markers">` + "\n")
	for _, m := range sc.Markers {
		s := m.Style
		p(`<circle class="%s" data-name="%s" cx="%s" cy="%s" r="%s" fill="%s" stroke="%s" stroke-width="%s" opacity="%s" style="filter:%s"/>`+"\n",
			s.State, escape(m.Name), num(m.X), num(m.Y), num(s.Radius), s.Fill, s.Stroke, num(s.StrokeWidth), num(s.Opacity), s.Shadow)
	}
	p("</g>\n")

	if l := sc.Label; l != nil {
		p(`<line class="leader" x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"/>`+"\n",
			num(l.Leader.X1), num(l.Leader.Y1), num(l.Leader.X2), num(l.Leader.Y2), leaderStroke, num(l.Leader.StrokeWidth))
		p(`<text class="label" x="%s" y="%s" font-size="%s" text-anchor="middle" fill="%s">%s</text>`+"\n",
			num(l.Label.X), num(l.Label.Y), num(l.Label.FontSize), labelFill, escape(l.Label.Text))
	}

	p("</g>\n</svg>\n")
	return bw.Flush()
}

func num(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
