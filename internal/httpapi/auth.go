package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pililla/queue-service/internal/store"
)

type authContextKey struct{}

// AuthMiddleware resolves the caller's session. sessionHeader names the
// header carrying the session id when no bearer token is present; empty
// falls back to X-Session-ID.
func AuthMiddleware(ts store.TicketStore, sessionHeader string, next http.Handler) http.Handler {
	if sessionHeader == "" {
		sessionHeader = "X-Session-ID"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		sessionID := sessionIDFromRequest(r, sessionHeader)
		if sessionID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := ts.GetSession(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (store.Session, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return store.Session{}, false
	}
	session, ok := value.(store.Session)
	if !ok {
		return store.Session{}, false
	}
	return session, true
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session")
		return false
	}
	for _, role := range roles {
		if session.Role == role {
			return true
		}
	}
	writeError(w, requestIDFromRequest(r), http.StatusForbidden, "access_denied", "access denied")
	return false
}

func sessionIDFromRequest(r *http.Request, sessionHeader string) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get(sessionHeader))
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// Kiosk and monitor screens run unauthenticated, so registration and the
// read-only queue views stay open.
func isPublicEndpoint(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/realtime/") {
		return true
	}
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/tickets":
		return r.Method == http.MethodPost
	case "/api/tickets/queue", "/api/tickets/snapshot", "/api/tickets/hold-pool":
		return r.Method == http.MethodGet
	case "/api/settings":
		return r.Method == http.MethodGet
	default:
		return r.Method == http.MethodOptions
	}
}
