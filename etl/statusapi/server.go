// Package statusapi exposes a small read-only HTTP view over the
// etl_chunks ledger so an operator can poll run progress without
// querying the database directly.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/haoqt/mini-etl/etl/database"
	"github.com/haoqt/mini-etl/etl/logging"
)

// Server serves run-progress summaries over HTTP.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	ledger     *database.LedgerRepository
	logger     logging.Logger
}

// New builds a Server listening on addr, reading progress through ledger.
func New(addr string, ledger *database.LedgerRepository, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	router := mux.NewRouter()

	s := &Server{
		router: router,
		ledger: ledger,
		logger: logger,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.healthCheck).Methods("GET")
	s.router.HandleFunc("/runs/{run_id}", s.runStatus).Methods("GET")
}

// ListenAndServe starts serving and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("status API listening", logging.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type runStatusResponse struct {
	RunID            string `json:"run_id"`
	SuccessfulChunks int    `json:"successful_chunks"`
}

func (s *Server) runStatus(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]

	processed, err := s.ledger.ProcessedChunkIDs(r.Context(), runID)
	if err != nil {
		s.logger.Error("failed to query run status", err, logging.String("run_id", runID))
		http.Error(w, "failed to query run status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runStatusResponse{
		RunID:            runID,
		SuccessfulChunks: len(processed),
	})
}
