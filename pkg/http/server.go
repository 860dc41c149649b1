package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NoisyMarket/pkg/http/middleware"
	applogger "NoisyMarket/pkg/logger"
)

// ServerOption configures Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	cors         bool
	metricsPath  string
	registerer   prometheus.Registerer
	gatherer     prometheus.Gatherer
	slow         time.Duration
	rateLimit    *middleware.RateLimitConfig
	log          *applogger.Logger
}

// Server is the echo instance plus its listen address.
type Server struct {
	echo *echo.Echo
	addr string
	log  *applogger.Logger
}

// NewServer installs the middleware chain, the handler's routes, /healthz and, when
// enabled, the Prometheus endpoint.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := serverConfig{
		addr:         ":8080",
		readTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
		cors:         true,
		slow:         2 * time.Second,
		log:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout

	e.Use(middleware.Recover(cfg.log), middleware.RequestLogging(cfg.log))
	if cfg.registerer != nil {
		e.Use(middleware.Metrics(middleware.NewHTTPMetrics(cfg.registerer), cfg.log, cfg.slow))
	}
	if cfg.rateLimit != nil {
		e.Use(middleware.RateLimit(*cfg.rateLimit))
	}
	if cfg.cors {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if cfg.metricsPath != "" && cfg.gatherer != nil {
		e.GET(cfg.metricsPath, echo.WrapHandler(promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{})))
	}
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	return &Server{echo: e, addr: cfg.addr, log: cfg.log}
}

// Start listens in the background. Listen errors other than a closed server are logged.
func (s *Server) Start() error {
	go func() {
		s.log.Info("http server listening", applogger.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo { return s.echo }

// WithAddr sets the listen address. An empty host listens on every interface.
func WithAddr(host string, port int) ServerOption {
	return func(c *serverConfig) { c.addr = fmt.Sprintf("%s:%d", host, port) }
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

func WithCORS(on bool) ServerOption {
	return func(c *serverConfig) { c.cors = on }
}

// WithMetrics records request metrics on reg and serves gatherer at path. An empty path
// keeps the request metrics but serves nothing.
func WithMetrics(path string, reg prometheus.Registerer, gatherer prometheus.Gatherer) ServerOption {
	return func(c *serverConfig) {
		c.metricsPath = path
		c.registerer = reg
		c.gatherer = gatherer
	}
}

// WithRateLimit limits each client IP to rps with the given burst.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(c *serverConfig) {
		c.rateLimit = &middleware.RateLimitConfig{Rate: rps, Burst: burst}
	}
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}
