// Package neatoohttp hosts the single remote-factory dispatch endpoint
// over HTTP: decode request, resolve delegate, decode parameters, run the
// factory lifecycle, encode response by the status-driven framing SPEC_FULL
// §7 settles on.
//
// Grounded on apps/iam-service/cmd/api/main.go's echo wiring (otelecho ->
// zap request logger -> Recover, in that order) and
// internal/handler/webhook_handler.go's header-based pre-auth plus
// c.Bind/c.JSON handler shape, generalized from one fixed payload type to
// an opaque delegate-name-driven dispatch. The zap request logger iam-service
// installs as generic echo middleware can't see the delegate name or
// correlation id, both resolved only once dispatch.go parses the request
// frame, so the one-structured-line-per-request log lives in
// handleDispatch itself rather than as middleware here.
package neatoohttp

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/delegate"
	"github.com/arc-self/neatoo/factory"
	"github.com/arc-self/neatoo/registry"
	"github.com/arc-self/neatoo/wire"
)

// DefaultPath is the default dispatch route (§6).
const DefaultPath = "/api/neatoo"

// Server hosts the dispatch endpoint on an echo.Echo instance.
type Server struct {
	echo      *echo.Echo
	delegates *delegate.Registry
	core      *factory.Core
	reg       *registry.Registry
	format    wire.Format
	logger    *zap.Logger
	done      <-chan struct{}
	path      string
}

// Option configures a Server at construction.
type Option func(*Server)

// WithPath overrides DefaultPath.
func WithPath(path string) Option {
	return func(s *Server) { s.path = path }
}

// New builds a Server. done is closed when the process begins a graceful
// shutdown; every in-flight request's cancellation is linked against it
// (§4.5 step 3: "client-disconnect signal ∪ server-shutdown signal").
func New(reg *registry.Registry, delegates *delegate.Registry, core *factory.Core, format wire.Format, logger *zap.Logger, done <-chan struct{}, opts ...Option) *Server {
	s := &Server{
		delegates: delegates,
		core:      core,
		reg:       reg,
		format:    format,
		logger:    logger,
		done:      done,
		path:      DefaultPath,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("neatoo"))
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealthz)
	e.POST(s.path, s.handleDispatch)

	s.echo = e
	return s
}

// Echo exposes the underlying echo.Echo for Start/Shutdown by the caller,
// mirroring how apps/iam-service/cmd/api/main.go owns its own e.Start/
// e.Shutdown calls around the signal-driven graceful shutdown sequence.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
