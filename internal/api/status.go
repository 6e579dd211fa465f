package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/video"
)

const latestJobs = 10

type healthResponse struct {
	OK         bool       `json:"ok"`
	Service    string     `json:"service"`
	Version    string     `json:"version"`
	Time       time.Time  `json:"time"`
	StartedAt  time.Time  `json:"startedAt"`
	LastTickAt *time.Time `json:"lastTickAt"`
	TickCount  int64      `json:"tickCount"`
	LastError  *string    `json:"lastError"`
}

type statusResponse struct {
	OK            bool       `json:"ok"`
	Service       string     `json:"service"`
	Version       string     `json:"version"`
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Ticks         int64      `json:"ticks"`
	LastTickAt    *time.Time `json:"lastTickAt"`
	LastError     *string    `json:"lastError"`
	Jobs          jobSummary `json:"jobs"`
}

type jobSummary struct {
	Total  int         `json:"total"`
	Latest []video.Job `json:"latest"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	now := s.deps.Clock.Now()
	resp := healthResponse{
		OK:        true,
		Service:   s.cfg.Server.ServiceName,
		Version:   s.cfg.Server.Version,
		Time:      now,
		StartedAt: now,
	}
	if s.deps.Scheduler != nil {
		st := s.deps.Scheduler.State()
		resp.StartedAt = st.StartedAt
		resp.LastTickAt = st.LastTickAt
		resp.TickCount = st.TickCount
		resp.LastError = st.LastError
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) hello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello World"))
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Jobs.Count(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, err := s.deps.Jobs.Count(ctx)
	if err != nil {
		s.logger.Error("count jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	latest, err := s.deps.Jobs.ListJobs(ctx, video.ListOptions{Limit: latestJobs})
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}

	now := s.deps.Clock.Now()
	resp := statusResponse{
		OK:      true,
		Service: s.cfg.Server.ServiceName,
		Version: s.cfg.Server.Version,
		Jobs:    jobSummary{Total: total, Latest: latest},
	}
	if s.deps.Scheduler != nil {
		st := s.deps.Scheduler.State()
		resp.UptimeSeconds = int64(now.Sub(st.StartedAt).Seconds())
		resp.Ticks = st.TickCount
		resp.LastTickAt = st.LastTickAt
		resp.LastError = st.LastError
	}
	writeJSON(w, http.StatusOK, resp)
}

type notFoundResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Path   string `json:"path"`
	Method string `json:"method"`
}

// notFound serves a matching file from the static directory for GET requests
// and answers the JSON 404 envelope otherwise.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if dir := s.cfg.Server.StaticDir; dir != "" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		if file, ok := staticFile(dir, r.URL.Path); ok {
			http.ServeFile(w, r, file)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, notFoundResponse{
		OK:     false,
		Error:  "NOT_FOUND",
		Path:   r.URL.Path,
		Method: r.Method,
	})
}

func staticFile(dir, urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	if strings.HasSuffix(urlPath, "/") || clean == "/" {
		clean = path.Join(clean, "index.html")
	}
	file := filepath.Join(dir, filepath.FromSlash(clean))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return "", false
	}
	return file, true
}
