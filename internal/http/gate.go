package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"safescribe/notes-api/internal/auth"
	"safescribe/notes-api/internal/metrics"
	"safescribe/notes-api/internal/model"
)

const reasonRevoked = "revoked"

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// optionalAuth lets anonymous requests through but authenticates any request
// that carries a bearer token, rejecting it when the token does not hold up.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, ok := s.authenticate(w, r, raw)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claimsFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		raw := bearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			s.reject(w, r, "missing_token")
			return
		}
		claims, ok := s.authenticate(w, r, raw)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// authenticate verifies raw and checks it against the revocation registry.
// On failure it has already written the response.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, raw string) (*auth.Claims, bool) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		s.reject(w, r, string(auth.ReasonOf(err)))
		return nil, false
	}

	if tokenID := claims.TokenID(); tokenID != "" {
		revoked, err := s.registry.IsRevoked(r.Context(), tokenID)
		if err != nil {
			metrics.ObserveRegistryError("is_revoked")
			s.requestLogger(r).Error("revocation lookup failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "registry_unavailable")
			return nil, false
		}
		if revoked {
			s.reject(w, r, reasonRevoked)
			return nil, false
		}
	}
	return claims, true
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, reason string) {
	if reason == "" {
		reason = string(auth.ReasonMalformed)
	}
	metrics.ObserveRejection(reason)
	s.requestLogger(r).Info("authentication rejected",
		zap.String("reason", reason),
		zap.String("path", r.URL.Path),
	)
	writeUnauthenticated(w)
}

// writeUnauthenticated is the single response for every authentication failure.
func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	writeErrorMessage(w, http.StatusUnauthorized, "unauthenticated", "token invalid, log in again")
}

func requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil {
				writeUnauthenticated(w)
				return
			}
			if !hasRole(claims, roles...) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(claims *auth.Claims, roles ...model.Role) bool {
	if claims == nil {
		return false
	}
	for _, role := range roles {
		if claims.Role == role {
			return true
		}
	}
	return false
}
