package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"safescribe/notes-api/internal/auth"
	"safescribe/notes-api/internal/config"
	"safescribe/notes-api/internal/identity"
	"safescribe/notes-api/internal/metrics"
	"safescribe/notes-api/internal/model"
	"safescribe/notes-api/internal/repository"
	"safescribe/notes-api/internal/revocation"
)

type Server struct {
	cfg          config.Config
	store        repository.Store
	identity     *identity.Service
	tokens       *auth.Manager
	registry     revocation.Registry
	logger       *zap.Logger
	loginLimiter *ipLimiter
	now          func() time.Time
}

func NewServer(cfg config.Config, store repository.Store, identitySvc *identity.Service, tokens *auth.Manager, registry revocation.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:          cfg,
		store:        store,
		identity:     identitySvc,
		tokens:       tokens,
		registry:     registry,
		logger:       logger,
		loginLimiter: newIPLimiter(cfg.LoginRatePerSecond, cfg.LoginBurst),
		now:          time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(metrics.Instrument)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.optionalAuth)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.rateLimit).Post("/register", s.handleRegister)
			r.With(s.rateLimit).Post("/login", s.handleLogin)
			r.With(s.requireAuth).Post("/logout", s.handleLogout)
			r.With(s.requireAuth).Get("/me", s.handleMe)
		})

		r.With(s.requireAuth, requireRole(model.RoleAdmin)).Get("/blacklist", s.handleListRevoked)

		r.Route("/notes", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.With(requireRole(model.RoleEditor, model.RoleAdmin)).Post("/", s.handleCreateNote)
			r.Get("/{noteID}", s.handleGetNote)
			r.With(requireRole(model.RoleEditor, model.RoleAdmin)).Put("/{noteID}", s.handleUpdateNote)
			r.With(requireRole(model.RoleAdmin)).Delete("/{noteID}", s.handleDeleteNote)
		})
	})

	return r
}

// pinger is implemented by registries with a remote backend worth probing.
type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.registry.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.requestLogger(r).Warn("revocation registry ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "registry": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Role     json.RawMessage `json:"role"`
}

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type registerResponse struct {
	Message string      `json:"message"`
	User    userSummary `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	user, err := s.identity.Register(r.Context(), identity.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     rawRole(req.Role),
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidInput):
			writeErrorMessage(w, http.StatusBadRequest, "invalid_input", strings.TrimPrefix(err.Error(), identity.ErrInvalidInput.Error()+": "))
		case errors.Is(err, identity.ErrDuplicateIdentity):
			writeErrorMessage(w, http.StatusBadRequest, "username_taken", "username already exists")
		default:
			s.requestLogger(r).Error("register failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		Message: "user registered",
		User: userSummary{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role.String(),
		},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string    `json:"token"`
	ExpiresAtUTC time.Time `json:"expiresAtUtc"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, token, err := s.identity.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			metrics.ObserveLogin("invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		metrics.ObserveLogin("error")
		s.requestLogger(r).Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	metrics.ObserveLogin("success")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:        token.Value,
		ExpiresAtUTC: token.ExpiresAt.UTC(),
		Username:     user.Username,
		Role:         user.Role.String(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthenticated(w)
		return
	}
	tokenID := claims.TokenID()
	if tokenID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "missing_token_id", "token has no identifier")
		return
	}

	if err := s.registry.Add(r.Context(), tokenID, claims.Expiry()); err != nil {
		metrics.ObserveRegistryError("add")
		s.requestLogger(r).Error("revocation add failed", zap.Error(err), zap.String("token_id", tokenID))
		writeError(w, http.StatusServiceUnavailable, "registry_unavailable")
		return
	}
	metrics.ObserveRevocation()
	s.requestLogger(r).Info("token revoked", zap.String("user_id", claims.UserID()), zap.String("token_id", tokenID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out, token revoked"})
}

type meResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAtUtc"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthenticated(w)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:        claims.UserID(),
		Username:  claims.Username,
		Role:      claims.Role.String(),
		TokenID:   claims.TokenID(),
		ExpiresAt: claims.Expiry().UTC(),
	})
}

type revokedResponse struct {
	Message string   `json:"message"`
	Count   int      `json:"count"`
	Tokens  []string `json:"tokens"`
}

func (s *Server) handleListRevoked(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.registry.ListActive(r.Context())
	if err != nil {
		metrics.ObserveRegistryError("list_active")
		s.requestLogger(r).Error("revocation list failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "registry_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, revokedResponse{
		Message: "tokens currently revoked",
		Count:   len(tokens),
		Tokens:  tokens,
	})
}

// rawRole accepts the role either as a JSON string or as its ordinal number.
func rawRole(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	var ordinal json.Number
	if err := json.Unmarshal(raw, &ordinal); err == nil {
		return ordinal.String()
	}
	return ""
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
