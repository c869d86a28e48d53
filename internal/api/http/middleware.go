package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"iotkit-lending-backend/internal/config"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/security"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the caller's validated claims.
func ClaimsFromContext(ctx context.Context) (*security.UserClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.UserClaims)
	return claims, ok
}

// AuthMiddleware enforces the security level configured for the matched route.
type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

func (a *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		template := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				template = t
			}
		}
		level := config.GetSecurityLevel(r.Method, template)

		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			writeStatusError(w, r, http.StatusUnauthorized, "unauthenticated", "authorization token is not provided")
			return
		}
		claims, err := a.tokenManager.ValidateAccessToken(token)
		if err != nil {
			writeStatusError(w, r, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		if level == config.SecurityAdmin && !claims.IsAdmin() {
			writeStatusError(w, r, http.StatusForbidden, "forbidden", "admin role required")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the bearer token, falling back to the access_token query
// parameter that browser websocket clients have to use.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return h[7:]
		}
		return h
	}
	return r.URL.Query().Get("access_token")
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
