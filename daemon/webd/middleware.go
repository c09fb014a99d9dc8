package webd

import (
	"io"
	"net/http"
	"os"
	"time"

	ghandlers "github.com/gorilla/handlers"
)

// TokenHeader carries the ingest token. The api_token query parameter is
// accepted as an alternative for clients that cannot set headers.
const TokenHeader = "X-Fixguard-Token"

// tokenAuthenticationMiddleware checks the request token against the
// environment variable named by Config.TokenEnv.
// If the variable is empty, all requests are allowed.
func (s *WebDaemon) tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validToken := os.Getenv(s.Config.TokenEnv)
		if validToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(TokenHeader)
		if token == "" {
			token = r.URL.Query().Get("api_token")
		}
		if token != validToken {
			s.logger.Warn("Invalid token",
				"method", r.Method, "url", r.URL.Path,
				"remote-addr", r.RemoteAddr, "user-agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, "+TokenHeader)
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs one line per request through slog.
// The writer handed to gorilla is unused; the formatter logs directly.
func (s *WebDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p ghandlers.LogFormatterParams) {
		s.logger.Debug("Request",
			"method", p.Request.Method,
			"uri", p.URL.RequestURI(),
			"status", p.StatusCode,
			"size", p.Size,
			"remote-addr", p.Request.RemoteAddr,
			"took", time.Since(p.TimeStamp).Round(time.Microsecond))
	})
}
