// Package api exposes the live rankings over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/okian/liveboard/internal/adapters/http/site"
	"github.com/okian/liveboard/internal/adapters/http/swagger"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

// LiveService is what the handlers need from the application.
type LiveService interface {
	Views() []model.View
	View(entityID string) (model.View, bool)
	RefreshAll(ctx context.Context) error
	Configure(ctx context.Context, entityIDs []string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	liveHandler   *LiveHandler
	stream        http.Handler
	logger        logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithStream mounts a websocket handler at /live/stream.
func WithStream(h http.Handler) Option {
	return func(s *Server) {
		s.stream = h
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(live LiveService, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		liveHandler:   NewLiveHandler(live),
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	// Static paths before the {entityID} pattern.
	r.HandleFunc("/live", MetricsMiddleware(s.liveHandler.HandleList, "live")).Methods(http.MethodGet)
	r.HandleFunc("/live/refresh", MetricsMiddleware(s.liveHandler.HandleRefresh, "refresh")).Methods(http.MethodPost)
	r.HandleFunc("/live/entities", MetricsMiddleware(s.liveHandler.HandleConfigure, "entities")).Methods(http.MethodPut)
	if s.stream != nil {
		r.Handle("/live/stream", s.stream).Methods(http.MethodGet)
	}
	r.HandleFunc("/live/{entityID}", MetricsMiddleware(s.liveHandler.HandleGet, "live_entity")).Methods(http.MethodGet)

	swagger.Register(r)
	site.Register(r)
}

// Handler returns the full handler chain: routes, panic recovery and CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(r)

	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(r)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(recovered)
}

// recoveryLogger adapts Logger to handlers.RecoveryHandlerLogger.
type recoveryLogger struct{ l logger.Logger }

func (r recoveryLogger) Println(v ...any) {
	r.l.Error(context.Background(), "recovered from panic", logger.Any("panic", v))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
