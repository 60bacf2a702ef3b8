// Package api exposes the chat agent over HTTP. Authentication is
// delegated to ERPNext: a login exchanges user credentials for an
// authenticated ERPNext client held server-side, keyed by the session id
// issued in a cookie.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/adrianliechti/bookman/pkg/erpnext"
	"github.com/adrianliechti/bookman/pkg/logging"
	"github.com/adrianliechti/bookman/pkg/provider"
)

const sessionCookie = "bookman_session"

// Chatter is the agent surface the API consumes.
type Chatter interface {
	Chat(ctx context.Context, sessionID, text string, client *erpnext.Client) (string, error)
	History(sessionID string) []provider.Message
	ClearSession(sessionID string)
	RefreshContext(sessionID string)
}

// Server routes HTTP requests to the agent.
type Server struct {
	agent      Chatter
	erpnextURL string
	logger     *slog.Logger

	mu      sync.RWMutex
	clients map[string]*erpnext.Client

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates the API server for an agent bound to one ERPNext instance.
func New(a Chatter, erpnextURL string, opts ...Option) *Server {
	s := &Server{
		agent:      a,
		erpnextURL: erpnextURL,
		logger:     logging.NewNop(),
		clients:    make(map[string]*erpnext.Client),
	}

	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/me", s.handleMe)
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/history", s.handleHistory)
		r.Post("/api/clear", s.handleClear)
		r.Post("/api/refresh-context", s.handleRefreshContext)
	})

	s.handler = cors.AllowAll().Handler(r)

	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return http.ListenAndServe(addr, s.handler)
}

type contextKey string

const clientKey contextKey = "erpnext-client"

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)

		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		s.mu.RLock()
		client, ok := s.clients[cookie.Value]
		s.mu.RUnlock()

		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		ctx := context.WithValue(r.Context(), clientKey, client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) client(r *http.Request) *erpnext.Client {
	client, _ := r.Context().Value(clientKey).(*erpnext.Client)
	return client
}

func (s *Server) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)

	if err != nil {
		return ""
	}

	return cookie.Value
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)

	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	client, err := erpnext.Login(r.Context(), s.erpnextURL, body.Username, body.Password)

	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	user, err := client.LoggedInUser(r.Context())

	if err != nil || user == "" {
		user = body.Username
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.clients[id] = client
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Info("login", "user", user)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := s.sessionID(r); id != "" {
		s.agent.ClearSession(id)

		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.client(r).LoggedInUser(r.Context())

	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"user": user})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	body.Message = strings.TrimSpace(body.Message)

	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "Empty message")
		return
	}

	id := s.sessionID(r)

	reply, err := s.agent.Chat(r.Context(), id, body.Message, s.client(r))

	if err != nil {
		if authExpired(err) {
			s.mu.Lock()
			delete(s.clients, id)
			s.mu.Unlock()

			writeError(w, http.StatusUnauthorized, "Session expired. Please log in again.")
			return
		}

		s.logger.Error("chat failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	messages := []entry{}

	for _, m := range s.agent.History(s.sessionID(r)) {
		if m.Role != provider.RoleUser && m.Role != provider.RoleAssistant {
			continue
		}

		if len(m.ToolCalls) > 0 {
			continue
		}

		messages = append(messages, entry{Role: string(m.Role), Content: m.Content})
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.agent.ClearSession(s.sessionID(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefreshContext(w http.ResponseWriter, r *http.Request) {
	s.agent.RefreshContext(s.sessionID(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authExpired spots model-provider failures that really mean the backend
// rejected our credentials.
func authExpired(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "Forbidden")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
