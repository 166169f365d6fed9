package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/titles"
	"go.uber.org/zap"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 1000
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("recommend request", zap.String("title", req.Title), zap.Int("k", req.K))
	resp, err := s.service.Recommend(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, "recommend", err)
		return
	}
	s.stampRequestID(r, resp)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "row must be an integer")
		return
	}
	k, err := intQuery(r, "k", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	enrich := s.service.Config().Enrich
	if v := r.URL.Query().Get("enrich"); v != "" {
		enrich, err = strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "enrich must be a boolean")
			return
		}
	}
	resp, err := s.service.Similar(r.Context(), row, k, enrich)
	if err != nil {
		s.respondServiceError(w, "similar", err)
		return
	}
	s.stampRequestID(r, resp)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	offset, err := intQuery(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intQuery(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	snap := s.service.Snapshot()
	items := snap.Catalog.Items(offset, limit)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"movies": items,
		"offset": offset,
		"limit":  limit,
		"total":  snap.Catalog.Len(),
	})
}

func (s *Server) handleTitleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := intQuery(r, "limit", defaultSearchLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	opts := &titles.SearchOptions{}
	if v := r.URL.Query().Get("fuzzy"); v != "" {
		opts.FuzzyEnabled, err = strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
	}
	matches, err := s.service.SearchTitles(r.Context(), q, limit, opts)
	if err != nil {
		s.logger.Error("title search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "matches": matches})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot()
	cfg := s.service.Config()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"movies":           snap.Catalog.Len(),
		"artifact_source":  snap.Source,
		"artifact_format":  snap.Format,
		"loaded_at":        snap.LoadedAt.Format(time.RFC3339),
		"metadata_enabled": s.service.MetadataEnabled(),
		"config": map[string]interface{}{
			"default_k":   cfg.DefaultK,
			"max_k":       cfg.MaxK,
			"concurrency": cfg.Concurrency,
			"enrich":      cfg.Enrich,
		},
	})
}

func (s *Server) stampRequestID(r *http.Request, resp *models.RecommendResponse) {
	if id := RequestIDFrom(r.Context()); id != "" {
		resp.RequestID = id
	}
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// respondServiceError maps lookup errors to 404/400 and anything else to 500.
func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrOutOfRange):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvalidRequest):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondJSON encodes data before writing the header so an encode failure is
// reported as a 500 instead of an empty 200.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{"error": "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
