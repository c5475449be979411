package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/auth"
	"github.com/platinummonkey/auditable/pkg/httputil"
	"github.com/platinummonkey/auditable/pkg/middleware"
	"github.com/sirupsen/logrus"
)

// Server serves the read side of the audit registry over HTTP
type Server struct {
	registry  *audit.Registry
	router    *mux.Router
	log       logrus.FieldLogger
	presenter audit.Presenter

	tokens      auth.TokenLookup
	limiter     middleware.Limiter
	limitWindow time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithTokens requires a bearer token with the audit:read scope on every route
func WithTokens(tokens auth.TokenLookup) Option {
	return func(s *Server) { s.tokens = tokens }
}

// WithRateLimit limits requests per caller through limiter
func WithRateLimit(limiter middleware.Limiter, window time.Duration) Option {
	return func(s *Server) {
		s.limiter = limiter
		s.limitWindow = window
	}
}

// WithPresenter sets how the "entries" format renders records
func WithPresenter(p audit.Presenter) Option {
	return func(s *Server) { s.presenter = p }
}

// NewServer creates a new API server on its own router
func NewServer(registry *audit.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		router:   mux.NewRouter(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes mounts the /v1 routes on router
func (s *Server) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.log),
		httputil.LoggingMiddleware(s.log),
	)
	if s.tokens != nil {
		v1.Use(
			middleware.NewAuthMiddleware(s.tokens, false, s.log).Handler,
			middleware.RequireScope(auth.ScopeAuditRead),
		)
	}
	if s.limiter != nil {
		v1.Use(middleware.NewRateLimitMiddleware(s.limiter, s.limitWindow, s.log).Handler)
	}

	v1.HandleFunc("/entity-types", s.listEntityTypes).Methods(http.MethodGet)
	v1.HandleFunc("/history/{type}", s.typeHistory).Methods(http.MethodGet)
	v1.HandleFunc("/history/{type}/{id}", s.entityHistory).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
