// Package server exposes the sign-in session over a local HTTP API.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-signin/internal/config"
	"github.com/jrsteele09/go-signin/session"
	"github.com/jrsteele09/go-signin/signin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the part of the application configuration the server reads.
type Config interface {
	config.EnvConfig
	config.CorsConfig
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   Config
	manager  *session.Manager
	model    *signin.Model
	gatherer prometheus.Gatherer
	events   *broadcaster
	logger   zerolog.Logger
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer serves gatherer on /metrics. Without it the default registry is used.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

func New(cfg Config, manager *session.Manager, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if manager == nil {
		return nil, errors.New("[Server New] session manager is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		manager:  manager,
		model:    signin.NewModel(manager),
		gatherer: prometheus.DefaultGatherer,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.events = newBroadcaster(manager)

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close disconnects event stream clients and stops following the session.
func (s *Server) Close() {
	s.events.close()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		s.logger.Info().Msg(formatRoute(method, path))
	}
}

func formatRoute(method, path string) string {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s %-7s%s] %s", color, method, ResetColor, path)
}
