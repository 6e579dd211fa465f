package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/video"
)

type eventRequest struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta"`
}

func (s *Server) logEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	evt := video.Event{
		Type:      req.Type,
		Message:   req.Message,
		Meta:      map[string]any{},
		CreatedAt: s.deps.Clock.Now(),
	}
	if evt.Type == "" {
		evt.Type = "event"
	}
	if len(req.Meta) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(req.Meta, &meta); err == nil && meta != nil {
			evt.Meta = meta
		}
	}

	if s.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "EVENT_STORE_NOT_CONFIGURED")
		return
	}
	if err := s.deps.Events.InsertEvent(r.Context(), evt); err != nil {
		s.logger.Error("insert event failed", zap.String("type", evt.Type), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
