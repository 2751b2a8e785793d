// Command atlas-render replays a script of view events against the loaded
// dataset and writes the resulting map as SVG or scene JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/libya-atlas/internal/dataset"
	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/timectrl"
)

// maxFramesPerEvent bounds how long one animated event may run.
const maxFramesPerEvent = 10000

type options struct {
	csv     string
	geojson string
	events  string
	out     string
	format  string
	width   float64
	height  float64
	frame   time.Duration
	infer   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.csv, "csv", "", "Municipality CSV file or URL; the embedded table is used when empty")
	flag.StringVar(&opts.geojson, "geojson", "", "District GeoJSON file or URL")
	flag.StringVar(&opts.events, "events", "", "JSON array of view events to replay")
	flag.StringVar(&opts.out, "out", "", "Output file; stdout when empty")
	flag.StringVar(&opts.format, "format", "svg", "Output format: svg or json")
	flag.Float64Var(&opts.width, "width", 960, "Surface width in pixels")
	flag.Float64Var(&opts.height, "height", 720, "Surface height in pixels")
	flag.DurationVar(&opts.frame, "frame", 16*time.Millisecond, "Animation frame step")
	flag.BoolVar(&opts.infer, "infer-regions", false, "Infer regions from coordinates when the column is missing")
	flag.Parse()

	log := logging.NewFromEnv()

	out := io.Writer(os.Stdout)
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "atlas-render: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := run(context.Background(), opts, log, out); err != nil {
		fmt.Fprintf(os.Stderr, "atlas-render: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log logging.Logger, out io.Writer) error {
	if opts.format != "svg" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}

	store := kb.NewKnowledgeBase()
	if _, err := dataset.NewLoader(dataset.WithLogger(log)).Load(ctx, store, dataset.Source{
		CSV:           opts.csv,
		GeoJSON:       opts.geojson,
		Retries:       2,
		RetryInterval: 200 * time.Millisecond,
		Timeout:       10 * time.Second,
		InferRegions:  opts.infer,
	}); err != nil {
		return err
	}

	events, err := readEvents(opts.events)
	if err != nil {
		return err
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, opts.frame, timectrl.Manual)
	registry := state.NewRegistry(state.NewDispatcher(store, state.WithClock(tc), state.WithLogger(log)))
	tc.AddListener(registry.Tick)

	sess, err := registry.Create(ctx, opts.width, opts.height)
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	for i, ev := range events {
		if _, err := sess.Apply(ctx, ev); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, ev.Type, err)
		}
		for frames := 0; sess.Animating() && frames < maxFramesPerEvent; frames++ {
			tc.Step()
		}
	}

	scene := render.Build(sess.Snapshot(), store)
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(scene)
	}
	return render.WriteSVG(out, scene)
}

func readEvents(path string) ([]state.Event, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	var events []state.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse events %s: %w", path, err)
	}
	return events, nil
}
