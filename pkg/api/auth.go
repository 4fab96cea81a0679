package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// AuthConfig holds authentication credentials for the API middleware.
type AuthConfig struct {
	Users   map[string]string // username -> password
	APIKeys map[string]bool   // valid API key tokens
}

type principalKey struct{}

// principalFrom returns the authenticated identity on r, if any. Basic
// auth yields the username; token auth yields no name.
func principalFrom(r *http.Request) string {
	name, _ := r.Context().Value(principalKey{}).(string)
	return name
}

// authMiddleware wraps an http.Handler with Basic Auth / Bearer /
// X-API-Key checks. Requests to /health and /metrics bypass
// authentication. The authenticated principal is attached to the
// request context so command execution can use it as the source
// identity.
func authMiddleware(cfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		if auth := r.Header.Get("Authorization"); auth != "" {
			if principal, ok := checkAuthorization(auth, cfg); ok {
				if principal != "" {
					r = r.WithContext(context.WithValue(r.Context(), principalKey{}, principal))
				}
				next.ServeHTTP(w, r)
				return
			}
		}

		if key := r.Header.Get("X-API-Key"); key != "" {
			if cfg.APIKeys[key] {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="relayd API"`)
		writeJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   "authentication required",
		})
	})
}

// checkAuthorization validates an Authorization header value and
// returns the principal it identifies.
func checkAuthorization(auth string, cfg AuthConfig) (string, bool) {
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return "", cfg.APIKeys[token]
	}

	if encoded, ok := strings.CutPrefix(auth, "Basic "); ok {
		payload, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", false
		}
		user, pass, ok := strings.Cut(string(payload), ":")
		if !ok {
			return "", false
		}
		expected, exists := cfg.Users[user]
		if !exists {
			return "", false
		}
		if subtle.ConstantTimeCompare([]byte(pass), []byte(expected)) != 1 {
			return "", false
		}
		return user, true
	}

	return "", false
}
