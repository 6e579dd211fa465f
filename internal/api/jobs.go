package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/metrics"
	"github.com/bossmind/videomaker/internal/publisher"
	"github.com/bossmind/videomaker/internal/video"
)

type createJobRequest struct {
	Prompt   string          `json:"prompt"`
	Title    string          `json:"title"`
	Language string          `json:"language"`
	Voice    string          `json:"voice"`
	Meta     json.RawMessage `json:"meta"`
}

func (c createJobRequest) toJobRequest() video.JobRequest {
	var meta map[string]any
	if len(c.Meta) > 0 {
		// Non-object meta values are dropped.
		_ = json.Unmarshal(c.Meta, &meta)
	}
	return video.JobRequest{
		Prompt:   c.Prompt,
		Title:    c.Title,
		Language: c.Language,
		Voice:    c.Voice,
		Meta:     meta,
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	limit := clampLimit(q.Get("limit"), s.cfg.Jobs.DefaultLimit, s.cfg.Jobs.MaxLimit)
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	jobs, err := s.deps.Jobs.ListJobs(ctx, video.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	total, err := s.deps.Jobs.Count(ctx)
	if err != nil {
		s.logger.Error("count jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// clampLimit parses raw, substituting def for missing, zero, or invalid
// values, and clamps the result to [1, max].
func clampLimit(raw string, def, maxLimit int) int {
	if def <= 0 {
		def = 50
	}
	if maxLimit <= 0 {
		maxLimit = 200
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		n = def
	}
	return min(max(n, 1), maxLimit)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": job})
}

func (s *Server) createVideoJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, err := s.createJob(r.Context(), req.toJobRequest())
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":   true,
		"job":  job,
		"next": "Poll /api/jobs/:id",
	})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	now := s.deps.Clock.Now()
	job, err := s.deps.Jobs.UpdateJob(ctx, chi.URLParam(r, "id"), func(j *video.Job) error {
		return j.Cancel(strings.TrimSpace(req.Reason), now)
	})
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	metrics.ObserveJob(string(video.JobStatusCanceled))
	s.notify(ctx, video.EventJobCanceled, job)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": job})
}

// createJob validates req, stores a queued job, and announces it.
func (s *Server) createJob(ctx context.Context, req video.JobRequest) (video.Job, error) {
	if len([]rune(strings.TrimSpace(req.Prompt))) < video.MinPromptLength {
		return video.Job{}, video.ErrPromptRequired
	}
	id, err := s.deps.IDs.NewID()
	if err != nil {
		return video.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job, err := video.NewJob(id, req, s.deps.Clock.Now())
	if err != nil {
		return video.Job{}, err
	}
	if err := s.deps.Jobs.CreateJob(ctx, job); err != nil {
		return video.Job{}, fmt.Errorf("create job: %w", err)
	}
	metrics.ObserveJob(string(video.JobStatusQueued))
	s.logger.Info("job created", zap.String("job_id", job.ID), zap.String("request_id", requestID(ctx)))
	s.notify(ctx, video.EventJobCreated, job)
	return job, nil
}

func (s *Server) notify(ctx context.Context, event string, job video.Job) {
	if err := publisher.Notify(ctx, s.deps.Publisher, s.topic, event, job, s.deps.Clock.Now()); err != nil {
		s.logger.Warn("notify failed", zap.String("event", event), zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, video.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND")
	case errors.Is(err, video.ErrPromptRequired):
		writeErrorMessage(w, http.StatusBadRequest, "PROMPT_REQUIRED",
			fmt.Sprintf("prompt must be at least %d characters", video.MinPromptLength))
	case errors.Is(err, video.ErrInvalidTransition):
		writeErrorMessage(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, video.ErrJobExists):
		writeError(w, http.StatusConflict, "JOB_EXISTS")
	default:
		s.logger.Error("job operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
	}
}
