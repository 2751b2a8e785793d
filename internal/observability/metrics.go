package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ServiceCollector bundles Prometheus metrics for the transport surfaces
// and the shared store, and provides helpers to wire them into gRPC servers
// and HTTP handlers.
type ServiceCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	StoreMunicipalities prometheus.Gauge
	StoreDistricts      prometheus.Gauge
}

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// NewServiceCollector registers transport and store metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewServiceCollector(reg prometheus.Registerer) (*ServiceCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_rpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "atlas_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_rpc_duration_seconds",
		Help:    "gRPC call latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"service", "method"}), "atlas_rpc_duration_seconds")
	if err != nil {
		return nil, err
	}

	httpRequests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route, and status code.",
	}, []string{"method", "route", "code"}), "atlas_http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_http_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"method", "route"}), "atlas_http_duration_seconds")
	if err != nil {
		return nil, err
	}

	municipalities, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atlas_store_municipalities",
		Help: "Number of municipalities currently loaded in the store.",
	}), "atlas_store_municipalities")
	if err != nil {
		return nil, err
	}
	districts, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atlas_store_districts",
		Help: "Number of district boundaries currently loaded in the store.",
	}), "atlas_store_districts")
	if err != nil {
		return nil, err
	}

	return &ServiceCollector{
		gatherer:            gatherer,
		RPCRequests:         requests,
		RPCDurations:        durations,
		HTTPRequests:        httpRequests,
		HTTPDurations:       httpDurations,
		StoreMunicipalities: municipalities,
		StoreDistricts:      districts,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *ServiceCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// ObserveHTTP records one handled HTTP request. route is the registered
// route pattern, not the raw path, to keep label cardinality bounded.
func (c *ServiceCollector) ObserveHTTP(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	if c.HTTPRequests != nil {
		c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	}
	if c.HTTPDurations != nil {
		c.HTTPDurations.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ServiceCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetStoreCounts updates the store gauges after a dataset load.
func (c *ServiceCollector) SetStoreCounts(municipalities, districts int) {
	if c == nil {
		return
	}
	if c.StoreMunicipalities != nil {
		c.StoreMunicipalities.Set(float64(municipalities))
	}
	if c.StoreDistricts != nil {
		c.StoreDistricts.Set(float64(districts))
	}
}

// SplitMethod parses "/pkg.Service/Method" into ("Service", "Method"). Missing
// parts read as "unknown".
func SplitMethod(fullMethod string) (string, string) {
	service, method := "unknown", "unknown"
	path := strings.TrimPrefix(fullMethod, "/")
	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		return service, method
	}
	if m := path[slash+1:]; m != "" {
		method = m
	}
	svc := path[:slash]
	if dot := strings.LastIndex(svc, "."); dot >= 0 {
		svc = svc[dot+1:]
	}
	if svc != "" {
		service = svc
	}
	return service, method
}

// register adds c to reg. A compatible collector already registered under
// the same descriptor is returned instead, so collectors can be rebuilt
// against one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var zero T
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return zero, err
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
	}
	return existing, nil
}
