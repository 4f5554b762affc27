package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/museai/internal/artifact"
	"github.com/hyperjump/museai/internal/cli"
	"github.com/hyperjump/museai/internal/embedding"
	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/storage"
	"go.uber.org/zap"
)

type contextResponse struct {
	Query      string `json:"query,omitempty"`
	K          int    `json:"k,omitempty"`
	ArtifactID int64  `json:"artifact_id,omitempty"`
	Context    string `json:"context"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := &cli.Status{
		Config: &cli.StatusConfig{
			EmbeddingProvider: s.config.Embedding.Provider,
			EmbeddingModel:    s.config.Embedding.Model,
			CatalogPath:       s.config.Data.CatalogPath,
			IndexPath:         s.config.Data.IndexPath,
			MetadataPath:      s.config.Data.MetadataPath,
			DefaultK:          s.config.Retrieval.DefaultK,
		},
	}
	snap, err := s.retriever.Snapshot(ctx)
	switch {
	case err == nil:
		status.Items = snap.Len()
		status.IndexSize = snap.Index.Size()
		status.Dimensions = snap.Index.Dimensions()
	case errors.Is(err, artifact.ErrMissingArtifact):
		// not built yet; report zeros
	default:
		s.logger.Error("status: load artifacts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if diskBytes, err := storage.DiskUsageBytes(s.config.Data.IndexPath, s.config.Data.MetadataPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	if s.runs != nil {
		if n, err := s.runs.CountRuns(ctx); err == nil {
			status.Runs = int(n)
		}
	}
	s.respondJSON(w, http.StatusOK, status)
}

// queryParams reads q and k, applying the configured default and cap on k.
func (s *Server) queryParams(r *http.Request) (string, int, error) {
	q := r.URL.Query().Get("q")
	k := s.config.Retrieval.DefaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, fmt.Errorf("%w: k must be an integer", models.ErrInvalidQuery)
		}
		k = n
	}
	if s.config.Retrieval.MaxK > 0 && k > s.config.Retrieval.MaxK {
		return "", 0, fmt.Errorf("%w: k must be at most %d", models.ErrInvalidQuery, s.config.Retrieval.MaxK)
	}
	return q, k, nil
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q, k, err := s.queryParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", q), zap.Int("k", k))
	result, err := s.retriever.Retrieve(r.Context(), q, k)
	if err != nil {
		s.respondFailure(w, "retrieve", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	q, k, err := s.queryParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("context request", zap.String("query", q), zap.Int("k", k))
	text, err := s.retriever.BuildContextForQuery(r.Context(), q, k)
	if err != nil {
		s.respondFailure(w, "context", err)
		return
	}
	s.respondJSON(w, http.StatusOK, contextResponse{Query: q, K: k, Context: text})
}

func artifactID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid artifact id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := artifactID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.retriever.Item(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "get artifact", err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleArtifactContext(w http.ResponseWriter, r *http.Request) {
	id, err := artifactID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("artifact context request", zap.Int64("artifact_id", id))
	text, err := s.retriever.BuildContextForArtifactID(r.Context(), id)
	if err != nil {
		s.respondFailure(w, "artifact context", err)
		return
	}
	s.respondJSON(w, http.StatusOK, contextResponse{ArtifactID: id, Context: text})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, http.StatusNotImplemented, "run history not enabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondFailure(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []*models.EvalRun{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// respondFailure maps an operation error to a status code.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, artifact.ErrMissingArtifact):
		status = http.StatusServiceUnavailable
	case errors.Is(err, embedding.ErrEmbeddingUnavailable):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
