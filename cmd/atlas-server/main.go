package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/libya-atlas/internal/config"
	"github.com/signalsfoundry/libya-atlas/internal/dataset"
	"github.com/signalsfoundry/libya-atlas/internal/httpapi"
	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/mapapi"
	"github.com/signalsfoundry/libya-atlas/internal/observability"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/timectrl"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "", "Optional yaml/json/toml config file; ATLAS_* environment variables override it")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flag.Parse()

	cfg, err := config.Load(config.Options{File: *configPath, EnvFiles: []string{*envFile}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "atlas-server: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	if err := run(ctx, cfg, log, listeners{}, hup); err != nil {
		log.Error(context.Background(), "atlas server exited", logging.Err(err))
		os.Exit(1)
	}
}

// listeners lets tests inject pre-bound sockets. Nil entries are created
// from the configured addresses.
type listeners struct {
	grpc    net.Listener
	http    net.Listener
	metrics net.Listener
}

func listen(lis net.Listener, addr string) (net.Listener, error) {
	if lis != nil {
		return lis, nil
	}
	if addr == "" {
		return nil, nil
	}
	return net.Listen("tcp", addr)
}

// run wires the store, the view sessions and the three servers, and blocks
// until ctx is cancelled or a server fails. Each value received on reload
// refetches the datasets; a nil channel disables reloading.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis listeners, reload <-chan os.Signal) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Observability(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewServiceCollector(reg)
	if err != nil {
		return fmt.Errorf("init service metrics: %w", err)
	}
	viewMetrics, err := observability.NewViewCollector(reg)
	if err != nil {
		return fmt.Errorf("init view metrics: %w", err)
	}

	store := kb.NewKnowledgeBase()
	loader := dataset.NewLoader(dataset.WithLogger(log), dataset.WithStoreMetrics(collector))
	if _, err := loader.Load(ctx, store, dataSource(cfg.Data)); err != nil {
		return err
	}

	clock := timectrl.NewTimeController(time.Now(), cfg.FrameInterval, timectrl.RealTime)
	dispatcher := state.NewDispatcher(store,
		state.WithClock(clock),
		state.WithMetricsRecorder(viewMetrics),
		state.WithLogger(log),
	)
	registry := state.NewRegistry(dispatcher,
		state.WithRegistryMetrics(viewMetrics),
		state.WithRegistryLogger(log),
	)
	defer registry.CloseAll()

	removeTick := clock.AddListener(registry.Tick)
	defer removeTick()
	unsubscribe := store.Subscribe(func(kb.Event) { registry.Reload(context.Background()) })
	defer unsubscribe()

	grpcLis, err := listen(lis.grpc, cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCAddr, err)
	}
	httpLis, err := listen(lis.http, cfg.HTTPAddr)
	if err != nil {
		closeListener(grpcLis)
		return fmt.Errorf("listen for HTTP on %s: %w", cfg.HTTPAddr, err)
	}
	metricsLis, err := listen(lis.metrics, cfg.MetricsAddr)
	if err != nil {
		closeListener(grpcLis)
		closeListener(httpLis)
		return fmt.Errorf("listen for metrics on %s: %w", cfg.MetricsAddr, err)
	}

	grpcServer := mapapi.NewServer(
		mapapi.NewMapService(registry, store, log,
			mapapi.WithDefaultSurface(cfg.Viewport.Width, cfg.Viewport.Height)),
		collector,
		log,
	)
	httpServer := httpapi.NewServer(registry, store,
		httpapi.WithCollector(collector),
		httpapi.WithLogger(log),
		httpapi.WithDefaultSurface(cfg.Viewport.Width, cfg.Viewport.Height),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins...),
	)
	var metricsServer *http.Server
	if metricsLis != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)
	frames := clock.Start(gctx, 0)

	g.Go(func() error {
		log.Info(gctx, "starting MapService gRPC server", logging.String("addr", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			log.Info(gctx, "serving Prometheus metrics", logging.String("addr", metricsLis.Addr().String()))
			if err := metricsServer.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-reload:
				res, err := loader.Load(gctx, store, dataSource(cfg.Data))
				if err != nil {
					log.Warn(gctx, "dataset reload failed", logging.Err(err))
					continue
				}
				log.Info(gctx, "dataset reloaded",
					logging.Int("municipalities", res.Municipalities),
					logging.Int("districts", res.Districts),
					logging.Bool("fallback", res.Fallback),
				)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down atlas server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		_ = httpServer.Shutdown(shutdownCtx)
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		<-frames
		return nil
	})

	return g.Wait()
}

func dataSource(c config.DataConfig) dataset.Source {
	return dataset.Source{
		CSV:           c.CSV,
		GeoJSON:       c.GeoJSON,
		Retries:       c.Retries,
		RetryInterval: c.RetryInterval,
		Timeout:       c.Timeout,
		InferRegions:  c.InferRegions,
	}
}

func closeListener(lis net.Listener) {
	if lis != nil {
		_ = lis.Close()
	}
}
