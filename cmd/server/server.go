// Package server wires the routing table, middleware and listeners of the
// hello server.
package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nginx-proxxy/hello-server/cmd/config"
	"github.com/nginx-proxxy/hello-server/cmd/logger"
	"github.com/nginx-proxxy/hello-server/cmd/metrics"
	"github.com/nginx-proxxy/hello-server/cmd/ratelimit"
	"github.com/nginx-proxxy/hello-server/cmd/router"
)

// Server holds everything needed to serve the responder routes
type Server struct {
	config  *config.Config
	log     *logger.Logger
	metrics metrics.Client
	router  *mux.Router
	limiter *ratelimit.Limiter
	handler http.Handler
}

// New creates a server for cfg with the default routing table
func New(cfg *config.Config, log *logger.Logger, m metrics.Client) *Server {
	return NewWithRoutes(cfg, log, m, router.DefaultRoutes())
}

// NewWithRoutes creates a server for cfg serving the given routing table
func NewWithRoutes(cfg *config.Config, log *logger.Logger, m metrics.Client, routes []*router.Route) *Server {
	if log == nil {
		log = logger.Default()
	}
	if m == nil {
		m = &metrics.NoOpClient{}
	}

	s := &Server{
		config:  cfg,
		log:     log,
		metrics: m,
		router:  router.New(routes),
		limiter: ratelimit.FromConfig(&cfg.RateLimit),
	}

	// Outermost first: observe, then limit, then route
	var handler http.Handler = s.router
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = s.observe(handler)
	s.handler = handler

	return s
}

// Handler returns the composed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// observe logs and records metrics for every request, matched or not
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s.log.LogRequest(r.Method, r.URL.Path, r.UserAgent(), duration, rec.status())
		s.metrics.ObserveRequest(r.Method, router.RouteLabel(s.router, r), rec.status(), duration)
	})
}

// httpServer builds the responder's http.Server from the [server] section
func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              s.config.GetListenAddr(),
		Handler:           s.handler,
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: s.config.Server.ReadHeaderTimeout,
	}
}

// ListenAndServe binds the configured address and serves until the listener
// fails. Bind errors are returned before any request is accepted.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.GetListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.GetListenAddr(), err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. When metrics are enabled the exposition
// endpoint is served on its own listener alongside.
func (s *Server) Serve(ln net.Listener) error {
	if s.limiter != nil {
		defer s.limiter.Close()
	}

	errCh := make(chan error, 2)

	if s.metrics.Enabled() {
		metricsLn, err := net.Listen("tcp", s.config.Metrics.ListenAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen on metrics address %s: %w", s.config.Metrics.ListenAddr, err)
		}
		go func() {
			errCh <- serveMetrics(metricsLn, s.metrics.Handler())
		}()
		s.log.Info("metrics listener started", "addr", metricsLn.Addr().String())
	}

	go func() {
		errCh <- s.httpServer().Serve(ln)
	}()

	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func serveMetrics(ln net.Listener, h http.Handler) error {
	routes := http.NewServeMux()
	routes.Handle("/metrics", h)

	srv := &http.Server{
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.Serve(ln); err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}
