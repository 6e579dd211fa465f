package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/artifacts"
	"github.com/bossmind/videomaker/internal/generation"
	"github.com/bossmind/videomaker/internal/generation/openai"
	"github.com/bossmind/videomaker/internal/generation/stability"
)

type imageResult struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finishReason"`
	URL          string `json:"url,omitempty"`
}

func (s *Server) generateImage(w http.ResponseWriter, r *http.Request) {
	var req stability.ImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "PROMPT_REQUIRED")
		return
	}
	if s.deps.Images == nil {
		writeError(w, http.StatusServiceUnavailable, "STABILITY_NOT_CONFIGURED")
		return
	}

	ctx := r.Context()
	images, err := s.deps.Images.Generate(ctx, req)
	if err != nil {
		s.writeUpstreamError(w, stability.Service, err)
		return
	}

	out := make([]imageResult, 0, len(images))
	for _, img := range images {
		res := imageResult{Base64: img.Base64, Seed: img.Seed, FinishReason: img.FinishReason}
		if s.deps.Artifacts.Enabled() {
			if data, err := base64.StdEncoding.DecodeString(img.Base64); err == nil {
				uri, err := s.deps.Artifacts.Save(ctx, artifacts.KindImage, "png", "image/png", data)
				if err != nil {
					s.logger.Warn("store image failed", zap.Error(err))
				}
				res.URL = uri
			}
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "images": out})
}

func (s *Server) tts(w http.ResponseWriter, r *http.Request) {
	var req openai.SpeechRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "TEXT_REQUIRED")
		return
	}
	if s.deps.Speech == nil {
		writeError(w, http.StatusServiceUnavailable, "OPENAI_NOT_CONFIGURED")
		return
	}
	if req.Language == "" {
		req.Language = s.cfg.DefaultLanguage()
	}

	ctx := r.Context()
	audio, err := s.deps.Speech.Synthesize(ctx, req)
	if err != nil {
		s.writeUpstreamError(w, openai.Service, err)
		return
	}

	if s.deps.Artifacts.Enabled() {
		uri, err := s.deps.Artifacts.Save(ctx, artifacts.KindAudio, s.deps.Speech.Extension(), audio.ContentType, audio.Data)
		if err != nil {
			s.logger.Warn("store audio failed", zap.Error(err))
		} else if uri != "" {
			w.Header().Set("X-Artifact-URL", uri)
		}
	}
	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("X-Voice", audio.Voice)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

// writeUpstreamError maps a generation failure onto the response. Upstream
// statuses and bodies are forwarded as received.
func (s *Server) writeUpstreamError(w http.ResponseWriter, service string, err error) {
	switch {
	case errors.Is(err, generation.ErrPromptRequired):
		writeError(w, http.StatusBadRequest, "PROMPT_REQUIRED")
	case errors.Is(err, openai.ErrTextTooLong):
		writeErrorMessage(w, http.StatusBadRequest, "TEXT_TOO_LONG", err.Error())
	case errors.Is(err, generation.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, strings.ToUpper(service)+"_NOT_CONFIGURED")
	default:
		if ue, ok := generation.AsUpstream(err); ok {
			s.logger.Warn("upstream error", zap.String("service", service), zap.Int("status", ue.StatusCode))
			ct := ue.ContentType
			if ct == "" {
				ct = "text/plain; charset=utf-8"
			}
			w.Header().Set("Content-Type", ct)
			w.WriteHeader(ue.StatusCode)
			_, _ = w.Write(ue.Body)
			return
		}
		s.logger.Error("upstream unavailable", zap.String("service", service), zap.Error(err))
		writeErrorMessage(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error())
	}
}
