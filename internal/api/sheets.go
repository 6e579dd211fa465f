package api

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/sheets"
)

func (s *Server) sheetQueue(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sheets == nil {
		s.writeSheetError(w, sheets.ErrNotConfigured)
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	rows, err := s.deps.Sheets.Queue(r.Context(), sheets.QueueOptions{All: all})
	if err != nil {
		s.writeSheetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(rows), "rows": rows})
}

func (s *Server) queueNext(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sheets == nil {
		s.writeSheetError(w, sheets.ErrNotConfigured)
		return
	}
	item, err := s.deps.Sheets.Next(r.Context())
	if err != nil {
		s.writeSheetError(w, err)
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "item": item})
}

func (s *Server) writeSheetError(w http.ResponseWriter, err error) {
	s.logger.Warn("sheet read failed", zap.Error(err))
	hint := sheets.HintFor(err)
	if hint == "" {
		hint = "check the sheet configuration and sharing settings"
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{OK: false, Error: err.Error(), Hint: hint})
}

type voiceEntry struct {
	Voice string `json:"voice"`
}

func (s *Server) languages(w http.ResponseWriter, _ *http.Request) {
	langs := s.cfg.Languages.Defaults
	if langs == nil {
		langs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "languages": langs})
}

func (s *Server) voices(w http.ResponseWriter, _ *http.Request) {
	voices := make(map[string]voiceEntry, len(s.cfg.Languages.Voices))
	for lang, v := range s.cfg.Languages.Voices {
		voices[lang] = voiceEntry{Voice: v}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "voices": voices})
}
