package devhost

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github/chapool/wallet-provider/internal/config"
	"github/chapool/wallet-provider/internal/provider/bridge"
)

// statusNotReady is returned by the readiness probe while the host is not usable.
const statusNotReady = 521

type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
	Bridge     *echo.Group
}

// Server exposes a Host over HTTP: the bridge endpoint for HTTP channels plus
// readiness and metrics for tooling.
type Server struct {
	Echo     *echo.Echo
	Router   *Router
	Config   config.Host
	Logger   config.Logger
	Host     *Host
	Registry *prometheus.Registry
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// NewHostWithRegistry builds a host whose metrics land on reg.
func NewHostWithRegistry(ctx context.Context, cfg config.Host, reg *prometheus.Registry) (*Host, func(), error) {
	h, err := New(ctx, cfg, WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	return h, h.Close, nil
}

// NewServer wires an echo instance around host. Metrics are served from reg.
func NewServer(cfg config.Host, logger config.Logger, host *Host, reg *prometheus.Registry) *Server {
	s := &Server{
		Echo:     echo.New(),
		Config:   cfg,
		Logger:   logger,
		Host:     host,
		Registry: reg,
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Use(s.requestLogger)
	s.Echo.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "wallet_provider",
		Subsystem:  "host_http",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	s.Router = &Router{
		Root:       s.Echo.Group(""),
		Management: s.Echo.Group("/-"),
		Bridge:     s.Echo.Group("/bridge"),
	}
	s.Router.Routes = append(s.Router.Routes,
		s.Router.Bridge.POST("", s.postBridge),
		s.Router.Management.GET("/ready", s.getReady),
		s.Router.Root.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))),
	)

	return s
}

// Ready reports whether the server has everything it needs to answer requests.
func (s *Server) Ready() bool {
	return s.Echo != nil && s.Host != nil && s.Host.keyring != nil
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	log.Info().Str("address", s.Config.ListenAddress).Str("session", s.Host.SessionID()).Msg("Development host listening")

	if err := s.Echo.Start(s.Config.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Echo == nil {
		return nil
	}
	return s.Echo.Shutdown(ctx)
}

func (s *Server) postBridge(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, bridge.MaxFrameSize))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, s.Host.Handle(c.Request().Context(), body))
}

func (s *Server) getReady(c echo.Context) error {
	if !s.Ready() {
		return c.String(statusNotReady, "Not ready.")
	}
	return c.String(http.StatusOK, "Ready.")
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		level := s.Logger.RequestLevel
		if c.Response().Status >= http.StatusInternalServerError {
			level = zerolog.WarnLevel
		}

		log.WithLevel(level).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")

		return nil
	}
}
