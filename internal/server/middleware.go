package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/thinkscotty/podcaster/internal/auth"
)

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		level := slog.LevelDebug
		if sw.status >= 500 {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).String(),
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireTriggerKey checks the bearer key against the configured bcrypt hash.
// Without a hash only loopback clients may trigger runs.
func (s *Server) requireTriggerKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.TriggerKeyHash == "" {
			if !isLoopback(r.RemoteAddr) {
				jsonError(w, "Trigger key not configured; only local requests are accepted", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		key, err := auth.BearerKey(r)
		if err != nil {
			jsonError(w, "Trigger key required", http.StatusUnauthorized)
			return
		}
		if err := auth.CheckKey(key, s.cfg.TriggerKeyHash); err != nil {
			s.logger.Warn("Rejected trigger key", "remote", r.RemoteAddr)
			jsonError(w, "Invalid trigger key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
