// Package server exposes a read-only JSON view of the corpus and the
// audit log, plus the process metrics.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/logger"
)

const defaultErrorLimit = 100

// Server is the HTTP server for the read API.
type Server struct {
	db  *database.DB
	mux *http.ServeMux
	log *slog.Logger
}

// New creates a new Server. Metrics are served from g; a nil g serves the
// default registry.
func New(db *database.DB, g prometheus.Gatherer) *Server {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	s := &Server{db: db, mux: http.NewServeMux(), log: logger.WithComponent("server")}
	s.routes(g)
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes(g prometheus.Gatherer) {
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/errors", s.handleErrors)
	s.mux.HandleFunc("GET /api/agendas/{id}", s.handleAgenda)
	s.mux.HandleFunc("GET /api/politicians/{id}", s.handlePolitician)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	years, err := s.db.ParseErrorCountsByYear(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.json(w, http.StatusOK, map[string]any{"corpus": stats, "parse_errors_by_year": years})
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.ParseErrorFilter{
		ErrorType:  q.Get("type"),
		EntityType: q.Get("entity"),
		Limit:      defaultErrorLimit,
	}
	var err error
	if v := q.Get("year"); v != "" {
		if f.Year, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	entries, err := s.db.ListParseErrors(r.Context(), f)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.json(w, http.StatusOK, entries)
}

func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := s.db.GetAgendaItem(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if item == nil {
		http.NotFound(w, r)
		return
	}
	speeches, err := s.db.GetSpeechesForAgenda(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.json(w, http.StatusOK, map[string]any{"agenda_item": item, "speeches": speeches})
}

func (s *Server) handlePolitician(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.db.GetPolitician(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if p == nil {
		http.NotFound(w, r)
		return
	}
	parts, err := s.db.ProfilePartsForPolitician(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.json(w, http.StatusOK, map[string]any{"politician": p, "profile_parts": parts})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.Error("request failed", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, g prometheus.Gatherer, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           New(db, g).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithComponent("server").Info("server listening", "addr", "http://"+srv.Addr)
	return srv.ListenAndServe()
}
