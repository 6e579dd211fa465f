package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/artifacts"
	"github.com/bossmind/videomaker/internal/config"
	"github.com/bossmind/videomaker/internal/generation/openai"
	"github.com/bossmind/videomaker/internal/generation/stability"
	"github.com/bossmind/videomaker/internal/metrics"
	pubmemory "github.com/bossmind/videomaker/internal/publisher/memory"
	"github.com/bossmind/videomaker/internal/scheduler"
	"github.com/bossmind/videomaker/internal/sheets"
	"github.com/bossmind/videomaker/internal/video"
)

// Ticker is the scheduler surface the API needs.
type Ticker interface {
	Tick(ctx context.Context) error
	State() scheduler.State
}

// SheetReader reads task rows from the configured spreadsheet.
type SheetReader interface {
	Queue(ctx context.Context, opts sheets.QueueOptions) ([]sheets.Row, error)
	Next(ctx context.Context) (*sheets.Row, error)
}

// ImageGenerator proxies text-to-image requests.
type ImageGenerator interface {
	Generate(ctx context.Context, req stability.ImageRequest) ([]stability.Image, error)
}

// SpeechSynthesizer proxies text-to-speech requests.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req openai.SpeechRequest) (openai.Audio, error)
	Extension() string
}

// LogSource exposes recent log lines.
type LogSource interface {
	Lines() []string
}

// NotificationSource exposes recently published notifications.
type NotificationSource interface {
	Messages() []pubmemory.PublishedMessage
}

// Deps are the collaborators the handlers call into. Optional ones may be nil.
type Deps struct {
	Jobs          video.JobStore
	IDs           video.IDGenerator
	Clock         video.Clock
	Scheduler     Ticker
	Publisher     video.Publisher
	Events        video.EventStore
	Sheets        SheetReader
	Images        ImageGenerator
	Speech        SpeechSynthesizer
	Artifacts     *artifacts.Store
	Logs          LogSource
	// Notifications backs GET /api/admin/notifications when set.
	Notifications NotificationSource
	// RateLimit wraps the generation proxies when set.
	RateLimit     func(http.Handler) http.Handler
}

// Server wires HTTP handlers to the job store, scheduler, and proxies.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
	topic  string
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		topic:  scheduler.DefaultTopic,
	}
	metrics.Init()

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Admin-Secret"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         86400,
	}))
	r.Use(bodyLimitMiddleware(cfg.Server.BodyLimitBytes))
	r.Use(noStoreMiddleware)

	r.Get("/", s.health)
	r.Get("/health", s.health)
	r.Get("/hello", s.hello)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/queue", s.sheetQueue)

	proxies := func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit)
		}
	}
	r.Group(func(r chi.Router) {
		proxies(r)
		r.Post("/tts", s.tts)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/cancel", s.cancelJob)
			})
		})
		r.Post("/generate-video", s.createVideoJob)

		r.Group(func(r chi.Router) {
			proxies(r)
			r.Post("/generate/image", s.generateImage)
			r.Post("/tts", s.tts)
		})

		r.Get("/sheet/queue", s.sheetQueue)
		r.Get("/queue/next", s.queueNext)
		r.Get("/config/languages", s.languages)
		r.Get("/config/voices", s.voices)
		r.Post("/logs/event", s.logEvent)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.adminLogin)
			r.Post("/logout", s.adminLogout)
			r.Group(func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Get("/jobs", s.listJobs)
				r.Post("/jobs", s.adminCreateJob)
				r.Post("/jobs/{id}/cancel", s.cancelJob)
				r.Post("/tick", s.adminTick)
				r.Get("/logs", s.adminLogs)
				r.Get("/notifications", s.adminNotifications)
			})
		})
	})

	if dir := cfg.Server.StaticDir; dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}
	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.notFound)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", requestID(r.Context())),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func bodyLimitMiddleware(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 1 << 20
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func noStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst
// untouched. It writes the error response itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE")
		return false
	}
	writeError(w, http.StatusBadRequest, "INVALID_JSON")
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{OK: false, Error: code})
}

type errorBody struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{OK: false, Error: code, Message: message})
}
