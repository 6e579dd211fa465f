package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	pubmemory "github.com/bossmind/videomaker/internal/publisher/memory"
	"github.com/bossmind/videomaker/internal/sheets"
)

const adminSecretHeader = "X-Admin-Secret"

type loginRequest struct {
	Secret string `json:"secret"`
}

type adminJobRequest struct {
	createJobRequest
	Source string `json:"source"`
}

// adminToken derives the cookie value from the secret so the secret itself
// never travels in a cookie.
func adminToken(secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("videomaker-admin"))
	return hex.EncodeToString(mac.Sum(nil))
}

func equalConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) cookieName() string {
	if s.cfg.Admin.CookieName != "" {
		return s.cfg.Admin.CookieName
	}
	return "admin_token"
}

func (s *Server) authorized(r *http.Request) bool {
	secret := s.cfg.Admin.Secret
	if header := r.Header.Get(adminSecretHeader); header != "" {
		return equalConstantTime(header, secret)
	}
	if c, err := r.Cookie(s.cookieName()); err == nil {
		return equalConstantTime(c.Value, adminToken(secret))
	}
	return false
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Admin.Secret == "" {
			writeError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED")
			return
		}
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Admin.Secret == "" {
		writeError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED")
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !equalConstantTime(req.Secret, s.cfg.Admin.Secret) {
		s.logger.Warn("admin login rejected", zap.String("request_id", requestID(r.Context())))
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
		return
	}
	ttl := s.cfg.Admin.CookieTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    adminToken(s.cfg.Admin.Secret),
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https"),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) adminLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) adminCreateJob(w http.ResponseWriter, r *http.Request) {
	var req adminJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	jobReq := req.toJobRequest()
	if strings.EqualFold(strings.TrimSpace(req.Source), "sheet") {
		if s.deps.Sheets == nil {
			s.writeSheetError(w, sheets.ErrNotConfigured)
			return
		}
		row, err := s.deps.Sheets.Next(ctx)
		if err != nil {
			s.writeSheetError(w, err)
			return
		}
		if row == nil {
			writeError(w, http.StatusNotFound, "QUEUE_EMPTY")
			return
		}
		jobReq = row.JobRequest()
	}

	job, err := s.createJob(ctx, jobReq)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "job": job})
}

func (s *Server) adminTick(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "SCHEDULER_DISABLED")
		return
	}
	if err := s.deps.Scheduler.Tick(r.Context()); err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "TICK_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": stateView(s.deps.Scheduler)})
}

func (s *Server) adminLogs(w http.ResponseWriter, _ *http.Request) {
	lines := []string{}
	if s.deps.Logs != nil {
		lines = s.deps.Logs.Lines()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(lines), "lines": lines})
}

func (s *Server) adminNotifications(w http.ResponseWriter, _ *http.Request) {
	msgs := []pubmemory.PublishedMessage{}
	if s.deps.Notifications != nil {
		msgs = s.deps.Notifications.Messages()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(msgs), "notifications": msgs})
}

type schedulerView struct {
	StartedAt  time.Time  `json:"startedAt"`
	LastTickAt *time.Time `json:"lastTickAt"`
	TickCount  int64      `json:"tickCount"`
	LastError  *string    `json:"lastError"`
}

func stateView(t Ticker) schedulerView {
	st := t.State()
	return schedulerView{
		StartedAt:  st.StartedAt,
		LastTickAt: st.LastTickAt,
		TickCount:  st.TickCount,
		LastError:  st.LastError,
	}
}
