package mapapi

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/observability"
)

// NewServer returns a gRPC server with MapService registered behind the
// request id, tracing, metrics and logging interceptors. collector may be nil.
func NewServer(svc *MapService, collector *observability.ServiceCollector, log logging.Logger, opts ...grpc.ServerOption) *grpc.Server {
	chain := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		chain = append(chain, collector.UnaryServerInterceptor())
	}
	chain = append(chain, LoggingUnaryServerInterceptor())

	serverOpts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}, opts...)

	server := grpc.NewServer(serverOpts...)
	RegisterMapServiceServer(server, svc)
	return server
}
