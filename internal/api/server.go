package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/burnout-twin/burnout-twin/internal/eval"
	"github.com/burnout-twin/burnout-twin/internal/logging"
)

// #region source
// SnapshotSource supplies the current snapshot file bytes.
type SnapshotSource interface {
	Bytes() ([]byte, bool)
}

// AllowedOrigins are the dashboard origins granted CORS.
var AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// #endregion source

// #region server
// Server serves the dashboard endpoints.
type Server struct {
	snapshots SnapshotSource
	name      string
	log       *zap.Logger

	mu   sync.RWMutex
	demo eval.Band
}

// NewServer returns a server reading snapshots from src. snapshotPath only
// names the file in 404 replies.
func NewServer(src SnapshotSource, snapshotPath string, logger *zap.Logger) *Server {
	demo, _ := eval.Preset(1)
	return &Server{
		snapshots: src,
		name:      filepath.Base(snapshotPath),
		log:       logging.OrNop(logger).Named("api"),
		demo:      demo,
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/persona", s.handlePersona)
	mux.HandleFunc("GET /state", s.handleGetState)
	mux.HandleFunc("POST /state", s.handleSetState)
	mux.HandleFunc("GET /health", s.handleHealth)
	return withCORS(mux)
}

// #endregion server

// #region handlers
func (s *Server) handlePersona(w http.ResponseWriter, _ *http.Request) {
	data, ok := s.snapshots.Bytes()
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("%s not found", s.name))
		return
	}
	if !json.Valid(data) {
		s.log.Warn("snapshot file is not valid JSON", zap.Int("bytes", len(data)))
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("%s is not valid JSON", s.name))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	band := s.demo
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, band)
}

type levelBody struct {
	Level *int `json:"level"`
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	var body levelBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "body must be JSON like {\"level\": 1}")
		return
	}
	if body.Level == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "level is required")
		return
	}
	band, err := eval.Preset(*body.Level)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	s.demo = band
	s.mu.Unlock()
	s.log.Info("demo state set", zap.Int("level", *body.Level), zap.String("band", string(band.StressBand)))
	writeJSON(w, http.StatusOK, band)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// #endregion handlers

// #region helpers
func withCORS(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(AllowedOrigins))
	for _, o := range AllowedOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				}
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// #endregion helpers
