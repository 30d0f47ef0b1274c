package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"photosort/internal/logging"
	"photosort/internal/metrics"
	"photosort/internal/session"
	"photosort/internal/startup"

	"github.com/gorilla/mux"
)

// Server exposes the pipeline's operational surface: health, session
// statistics and Prometheus metrics. It never touches pipeline state
// directly; everything goes through the session snapshot.
type Server struct {
	sess *session.Session
	srv  *http.Server
}

// NewServer builds a status server for sess listening on addr.
func NewServer(sess *session.Session, addr string) *Server {
	s := &Server{sess: sess}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown. It blocks; run it in a goroutine.
func (s *Server) Start() error {
	logging.Info("Status server listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": startup.Version,
	}); err != nil {
		logging.Warn("failed to write health response: %v", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sess.Snapshot()); err != nil {
		logging.Warn("failed to write stats response: %v", err)
	}
}
