package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Auth admits requests carrying apiKey as a Bearer token or an X-API-Key
// header. Websocket upgrades may pass it as ?token= instead, since browsers
// cannot set headers on them. An empty apiKey disables the check.
func Auth(apiKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		want := []byte(apiKey)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			switch {
			case token == "":
				deny(w, r, logger, "missing api key")
			case subtle.ConstantTimeCompare([]byte(token), want) != 1:
				deny(w, r, logger, "invalid api key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func requestToken(r *http.Request) string {
	if scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

func deny(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logger.WarnContext(r.Context(), "request rejected",
		slog.String("path", r.URL.Path),
		slog.String("client", clientIP(r)),
		slog.String("reason", reason),
	)
	writeError(w, http.StatusUnauthorized, reason)
}
