package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const (
	// WorkspaceHeader carries the workspace a request operates in.
	WorkspaceHeader = "X-Workspace-ID"
	workspaceKey    = contextKey("workspace_id")
)

// WorkspaceFromContext returns the workspace id extracted by WorkspaceScope.
func WorkspaceFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workspaceKey).(string)
	return id
}

// WorkspaceScope requires the X-Workspace-ID header and stores it in the
// request context. All memory operations are scoped to it.
func WorkspaceScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID := strings.TrimSpace(r.Header.Get(WorkspaceHeader))
		if workspaceID == "" {
			writeError(w, http.StatusBadRequest, "missing "+WorkspaceHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), workspaceKey, workspaceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIKeyAuth checks the Authorization bearer token against a static key.
// An empty configured key disables the check.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
