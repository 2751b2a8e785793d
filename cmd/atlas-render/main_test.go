package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
)

func writeEvents(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write events: %v", err)
	}
	return path
}

func baseOptions() options {
	return options{format: "svg", width: 800, height: 600, frame: 16 * time.Millisecond}
}

func TestRenderReplaysEventsToJSON(t *testing.T) {
	opts := baseOptions()
	opts.format = "json"
	opts.events = writeEvents(t, `[
		{"type": "select", "name": "بنغازي"},
		{"type": "zoom_in"}
	]`)

	var buf bytes.Buffer
	if err := run(context.Background(), opts, logging.Noop(), &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	var scene render.Scene
	if err := json.Unmarshal(buf.Bytes(), &scene); err != nil {
		t.Fatalf("decode scene: %v", err)
	}
	if scene.Selection.Kind != state.SelectionMunicipality || scene.Selection.Municipality != "بنغازي" {
		t.Fatalf("selection = %+v", scene.Selection)
	}
	if scene.Animating {
		t.Fatalf("replay should run every animation to completion")
	}
	if math.Abs(scene.Transform.K-core.ZoomStep) > 1e-9 {
		t.Fatalf("K = %v, want %v", scene.Transform.K, core.ZoomStep)
	}
	if scene.Label == nil || scene.Info == nil {
		t.Fatalf("expected label and info panel for the selection")
	}
}

func TestRenderWritesSVG(t *testing.T) {
	opts := baseOptions()
	opts.events = writeEvents(t, `[{"type": "hover", "name": "سبها"}]`)

	var buf bytes.Buffer
	if err := run(context.Background(), opts, logging.Noop(), &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	svg := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(svg), "<svg") {
		t.Fatalf("output is not an svg document: %.80q", svg)
	}
	if got := strings.Count(svg, "<circle"); got != 3 {
		t.Fatalf("circles = %d, want 3", got)
	}
	if !strings.Contains(svg, "hovered") {
		t.Fatalf("expected a hovered marker")
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*options)
		target error
	}{
		{"format", func(o *options) { o.format = "png" }, nil},
		{"missing events file", func(o *options) { o.events = filepath.Join(t.TempDir(), "none.json") }, os.ErrNotExist},
		{"unknown municipality", func(o *options) {
			o.events = writeEvents(t, `[{"type": "select", "name": "nowhere"}]`)
		}, nil},
		{"invalid event", func(o *options) {
			o.events = writeEvents(t, `[{"type": "resize", "width": 0, "height": 10}]`)
		}, state.ErrInvalidEvent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := baseOptions()
			tc.mutate(&opts)
			err := run(context.Background(), opts, logging.Noop(), &bytes.Buffer{})
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Fatalf("err = %v, want %v", err, tc.target)
			}
		})
	}
}
