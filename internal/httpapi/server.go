// Package httpapi implements the single GET /agent endpoint, grounded
// on the reference service's internal/interfaces/http/server.go
// mux.Router + middleware-chain shape, generalized from a read-only
// multi-route API down to one route.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/hanguk-agent/internal/agent"
	"github.com/sawpanic/hanguk-agent/internal/llm"
	"github.com/sawpanic/hanguk-agent/internal/metrics"
)

// ServerConfig holds the HTTP server's listen address and timeouts,
// mirroring the ServerConfig shape.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RequestDeadline time.Duration
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    45 * time.Second,
		IdleTimeout:     60 * time.Second,
		RequestDeadline: 40 * time.Second,
	}
}

// Server wraps the mux.Router and the assembled Agent.
type Server struct {
	router  *mux.Router
	server  *http.Server
	agent   *agent.Agent
	metrics *metrics.Registry
	config  ServerConfig
}

func NewServer(a *agent.Agent, reg *metrics.Registry, config ServerConfig) *Server {
	s := &Server{agent: a, metrics: reg, config: config, router: mux.NewRouter()}
	s.setupRoutes()
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/agent", s.handleAgent).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	s.router.NotFoundHandler = http.HandlerFunc(notFound)
}

type agentResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

type requestIDKey struct{}

// handleAgent implements the GET /agent contract: required
// `question`, optional `session_id`, bearer-token extraction, the
// X-NCP-CLOVASTUDIO-REQUEST-ID session-id fallback, and a minted UUIDv4
// when neither is supplied.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		writeJSON(w, http.StatusBadRequest, agentResponse{Answer: "question 파라미터가 필요합니다."})
		return
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, agentResponse{Answer: "인증 토큰이 필요합니다."})
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = r.Header.Get("X-NCP-CLOVASTUDIO-REQUEST-ID")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestDeadline)
	defer cancel()
	ctx = llm.WithAPIKey(ctx, token)

	start := time.Now()
	turn := s.agent.Handle(ctx, sessionID, question)
	if s.metrics != nil {
		s.metrics.RequestDuration.WithLabelValues("agent", "ok").Observe(time.Since(start).Seconds())
		s.metrics.RequestsTotal.WithLabelValues("agent", "ok").Inc()
	}

	writeJSON(w, http.StatusOK, agentResponse{Answer: turn.Answer, SessionID: turn.SessionID})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func writeJSON(w http.ResponseWriter, status int, body agentResponse) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, agentResponse{Answer: "not found"})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Info().
			Str("request_id", fmt.Sprint(r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestDeadline)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

type statusWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Start binds the listener and serves until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("hanguk-agent http server starting")
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
