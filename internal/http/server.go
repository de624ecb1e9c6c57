// Package http exposes the JSON APIs of the records service and the account
// service.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"finanzen/internal/log"
)

// Server wraps http.Server with the shared middleware chain and graceful
// shutdown.
type Server struct {
	*http.Server
	logger *log.Logger
}

func newServer(addr string, mux *http.ServeMux, logger *log.Logger) *Server {
	s := &Server{
		logger: logger.WithComponent(log.ComponentHTTP),
	}
	s.Server = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	return s
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	return s.Server.Shutdown(ctx)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = generateRequestID()
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		s.logger.Info("Request handled",
			log.FieldRequestID, id,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatus, rw.status,
			log.FieldDuration, time.Since(start).String())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
