package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/blob"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/report"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/core/visibility"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        user.Service
		GroupSvc       group.Service
		TrackingSvc    tracking.Service
		ReportSvc      *report.Service
		IdentitySvc    *identity.Service
		Impersonations *identity.Store
		Visibility     *visibility.Engine
		Blobs          *blob.Store
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		tokens   *tokenIssuer
		registry *prometheus.Registry
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		tokens:   newTokenIssuer(deps.Conf),
		registry: prometheus.NewRegistry(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	m := newMetrics(s.registry, s.deps.Blobs, s.deps.Impersonations)
	s.app.Use(m.middleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.tokens.jwtConfig())
	ident := identityMiddleware(identity.NewResolver(s.deps.Impersonations))

	registerUserAPI(v1, jwt, ident, s.tokens, s.deps.UserSvc, s.deps.Visibility, s.deps.Validate)
	registerImpersonationAPI(v1, jwt, ident, s.deps.IdentitySvc, s.deps.Validate)
	registerGroupAPI(v1, jwt, ident, s.deps.GroupSvc, s.deps.Validate)
	registerTrackingAPI(v1, jwt, ident, s.deps.TrackingSvc, s.deps.Validate)
	registerReportAPI(v1, jwt, ident, s.deps.ReportSvc)
}

// Start listens on the configured address; listener errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
