// Package dataset fetches the municipality table and district outlines from
// files or http(s) URLs and loads them into the knowledge base.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/signalsfoundry/libya-atlas/core"
	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/model"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyDataset is returned when a municipality source parsed cleanly but
// yielded no usable rows.
var ErrEmptyDataset = errors.New("dataset has no usable municipalities")

// ErrBodyTooLarge is returned when a fetched document exceeds the body limit.
var ErrBodyTooLarge = errors.New("dataset body exceeds size limit")

// maxBodyBytes bounds a single fetched document.
const maxBodyBytes = 64 << 20

// Source describes where the two datasets live.
type Source struct {
	CSV           string
	GeoJSON       string
	Retries       int
	RetryInterval time.Duration
	Timeout       time.Duration
	InferRegions  bool
}

// StoreMetrics receives the store sizes after a load.
type StoreMetrics interface {
	SetStoreCounts(municipalities, districts int)
}

// Result reports what ended up in the store.
type Result struct {
	Municipalities int
	Districts      int
	Skipped        []core.RowError
	// Fallback is set when the embedded table replaced the configured one.
	Fallback bool
	// CSVErr and GeoJSONErr hold the failures that were absorbed.
	CSVErr     error
	GeoJSONErr error
}

// Loader fetches and loads datasets.
type Loader struct {
	client  *http.Client
	log     logging.Logger
	metrics StoreMetrics
	maxBody int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient overrides the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log logging.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithStoreMetrics reports store sizes after each load.
func WithStoreMetrics(m StoreMetrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithMaxBodyBytes overrides the per-document size limit for http(s) sources.
func WithMaxBodyBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBody = n
		}
	}
}

// NewLoader returns a Loader using http.DefaultClient and a noop logger.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{client: http.DefaultClient, log: logging.Noop(), maxBody: maxBodyBytes}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches both sources concurrently and replaces the store contents.
// A failing or empty municipality source falls back to the embedded table;
// a failing district source leaves the district layer empty. Only a store
// rejection is returned as an error.
func (l *Loader) Load(ctx context.Context, store *kb.KnowledgeBase, src Source) (Result, error) {
	if store == nil {
		return Result{}, fmt.Errorf("dataset: store is nil")
	}

	var (
		csvBody, geoBody []byte
		csvErr, geoErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	if src.CSV != "" {
		g.Go(func() error {
			csvBody, csvErr = l.fetch(gctx, src.CSV, src)
			return nil
		})
	}
	if src.GeoJSON != "" {
		g.Go(func() error {
			geoBody, geoErr = l.fetch(gctx, src.GeoJSON, src)
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	opts := core.LoadOptions{InferRegions: src.InferRegions}

	var districts []model.District
	if geoErr == nil && geoBody != nil {
		districts, geoErr = core.ParseDistrictsGeoJSON(bytes.NewReader(geoBody))
	}
	if geoErr != nil {
		districts = nil
		res.GeoJSONErr = geoErr
		l.log.Warn(ctx, "district outlines unavailable; drawing without them",
			logging.String("source", src.GeoJSON),
			logging.Err(geoErr),
		)
	}

	var municipalities []model.Municipality
	switch {
	case src.CSV == "":
		res.Fallback = true
	case csvErr != nil:
		res.CSVErr = csvErr
	default:
		ds, err := core.ParseMunicipalitiesCSV(bytes.NewReader(csvBody), opts)
		switch {
		case err != nil:
			res.CSVErr = err
		case len(ds.Municipalities) == 0:
			res.CSVErr = ErrEmptyDataset
			res.Skipped = ds.Skipped
		default:
			municipalities = ds.Municipalities
			res.Skipped = ds.Skipped
		}
	}
	if res.CSVErr != nil {
		res.Fallback = true
		l.log.Warn(ctx, "municipality dataset unavailable; using embedded fallback",
			logging.String("source", src.CSV),
			logging.Err(res.CSVErr),
		)
	}
	if res.Fallback {
		municipalities = core.FallbackMunicipalities()
	}

	for _, rowErr := range res.Skipped {
		l.log.Warn(ctx, "dropped municipality row",
			logging.Int("line", rowErr.Line),
			logging.String("reason", rowErr.Reason),
		)
	}

	if err := store.Load(municipalities, districts); err != nil {
		return res, fmt.Errorf("dataset: load store: %w", err)
	}
	res.Municipalities = len(municipalities)
	res.Districts = len(districts)
	if l.metrics != nil {
		l.metrics.SetStoreCounts(res.Municipalities, res.Districts)
	}
	l.log.Info(ctx, "dataset loaded",
		logging.Int("municipalities", res.Municipalities),
		logging.Int("districts", res.Districts),
		logging.Int("skipped_rows", len(res.Skipped)),
		logging.Bool("fallback", res.Fallback),
	)
	return res, nil
}

// fetch reads a file path or http(s) URL, retrying transient failures with a
// constant backoff.
func (l *Loader) fetch(ctx context.Context, location string, src Source) ([]byte, error) {
	var body []byte
	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			var err error
			body, err = l.fetchOnce(ctx, location, src.Timeout)
			return err
		},
		backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(src.RetryInterval), uint64(max(src.Retries, 0))),
			ctx,
		),
		func(err error, wait time.Duration) {
			l.log.Debug(ctx, "dataset fetch failed; retrying",
				logging.String("source", location),
				logging.Int("attempt", attempt),
				logging.Duration("wait", wait),
				logging.Err(err),
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	return body, nil
}

func (l *Loader) fetchOnce(ctx context.Context, location string, timeout time.Duration) ([]byte, error) {
	if !isURL(location) {
		data, err := os.ReadFile(location)
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("status code error: %d %s", resp.StatusCode, resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > l.maxBody {
		return nil, backoff.Permanent(fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, l.maxBody))
	}
	return data, nil
}

func isURL(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
