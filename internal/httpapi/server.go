// Package httpapi serves view sessions over HTTP and websockets.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/observability"
	"github.com/signalsfoundry/libya-atlas/internal/render"
	"github.com/signalsfoundry/libya-atlas/internal/view/state"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/model"
)

// Store is the read side of the municipality store the API exposes.
type Store interface {
	render.Source
	ListByRegion(r model.Region) []model.Municipality
	Summary(r model.Region) kb.RegionSummary
}

// Server is the echo application for the map API.
type Server struct {
	router    *echo.Echo
	registry  *state.Registry
	store     Store
	collector *observability.ServiceCollector
	log       logging.Logger
	upgrader  websocket.Upgrader

	defaultWidth  float64
	defaultHeight float64
	pingInterval  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithCollector records request metrics on c.
func WithCollector(c *observability.ServiceCollector) Option {
	return func(s *Server) {
		s.collector = c
	}
}

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDefaultSurface sets the surface size used when a session request
// omits it.
func WithDefaultSurface(width, height float64) Option {
	return func(s *Server) {
		s.defaultWidth = width
		s.defaultHeight = height
	}
}

// WithAllowedOrigins restricts websocket and CORS origins. An empty list
// allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		}
		if len(origins) > 0 {
			s.router.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: origins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
				AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
			}))
		}
	}
}

// NewServer builds the router and registers every route.
func NewServer(registry *state.Registry, store Store, opts ...Option) *Server {
	s := &Server{
		router:        echo.New(),
		registry:      registry,
		store:         store,
		log:           logging.Noop(),
		defaultWidth:  1000,
		defaultHeight: 700,
		pingInterval:  30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.router.HideBanner = true
	s.router.HidePort = true
	s.router.Validator = NewValidator()
	s.router.HTTPErrorHandler = s.httpErrorHandler
	s.router.Use(s.requestContext, s.observe, middleware.Recover())

	for _, opt := range opts {
		opt(s)
	}

	api := s.router.Group("/api/v1")

	sessions := api.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("/:id/scene", s.getScene)
	sessions.POST("/:id/events", s.postEvent)
	sessions.GET("/:id/map.svg", s.getSVG)
	sessions.GET("/:id/ws", s.streamSession)
	sessions.DELETE("/:id", s.deleteSession)

	api.GET("/municipalities", s.listMunicipalities)
	api.GET("/regions", s.listRegions)

	s.router.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info(context.Background(), "starting HTTP API", logging.String("addr", addr))
	return s.router.Start(addr)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.router.Listener = lis
	s.log.Info(context.Background(), "starting HTTP API", logging.String("addr", lis.Addr().String()))
	return s.router.Start(lis.Addr().String())
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}

// requestContext attaches a request id and a request-scoped logger to the
// request context, honouring an inbound X-Request-ID header.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()
		if incoming := req.Header.Get(echo.HeaderXRequestID); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, s.log.With(
			logging.String("method", req.Method),
			logging.String("route", c.Path()),
		))
		if id := c.Param("id"); id != "" {
			ctx, reqLog = logging.WithSessionLogger(ctx, reqLog, id)
		}
		ctx = logging.ContextWithLogger(ctx, reqLog)

		c.SetRequest(req.WithContext(ctx))
		c.Response().Header().Set(echo.HeaderXRequestID, logging.RequestIDFromContext(ctx))
		return next(c)
	}
}

// observe records request counts and latency by route pattern. Errors are
// rendered here so the recorded status matches the response.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.collector.ObserveHTTP(c.Request().Method, route, c.Response().Status, time.Since(start))
		return nil
	}
}
