package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/samplebench/internal/store"
)

type runView struct {
	ID         int64   `json:"id"`
	Dataset    string  `json:"dataset"`
	SUT        string  `json:"sut"`
	Metric     string  `json:"metric"`
	Samples    int     `json:"samples"`
	Failures   int     `json:"failures"`
	Accuracy   float64 `json:"accuracy"`
	Summary    string  `json:"summary"`
	DurationMS int64   `json:"duration_ms"`
	CreatedAt  string  `json:"created_at"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListDatasets(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("api: store unavailable"))
		return
	}

	datasets, err := s.store.ListDatasets(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": datasets})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("api: store unavailable"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	runs, err := s.store.ListRuns(c.Request.Context(), c.Query("dataset"), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]runView, 0, len(runs))
	for i := range runs {
		out = append(out, toRunView(&runs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("api: store unavailable"))
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid run id %q", c.Param("id")))
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, toRunView(run))
}

func toRunView(r *store.Run) runView {
	return runView{
		ID:         r.ID,
		Dataset:    r.Dataset,
		SUT:        r.SUT,
		Metric:     r.Metric,
		Samples:    r.Samples,
		Failures:   r.Failures,
		Accuracy:   r.Accuracy,
		Summary:    r.Summary,
		DurationMS: r.Duration.Milliseconds(),
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, errors.New("limit must be > 0")
	}
	return v, nil
}
