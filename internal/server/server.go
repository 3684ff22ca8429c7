package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

const (
	probeTimeout   = 2 * time.Second
	maxFormatBytes = 1 << 20
)

// Check 是 /ready 的一个子系统探测
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Server struct {
	checks []Check
	opts   []slackify.Option
	logger logrus.FieldLogger
}

func NewServer(logger logrus.FieldLogger, checks []Check, opts ...slackify.Option) *Server {
	if logger == nil {
		logger = slackify.Logger
	}
	sorted := append([]Check(nil), checks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Server{checks: sorted, opts: opts, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Post("/format", s.format)

	return r
}

// ListenAndServe 启动 HTTP 服务，ctx 结束时优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("health server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		// 探活请求不记录
		if r.URL.Path == "/health" || r.URL.Path == "/ready" {
			return
		}
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("http request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	subsystems := make(map[string]subsystemStatus, len(s.checks))
	overall := http.StatusOK
	for _, check := range s.checks {
		if err := check.Probe(ctx); err != nil {
			subsystems[check.Name] = subsystemStatus{Status: "error", Error: err.Error()}
			overall = http.StatusServiceUnavailable
			continue
		}
		subsystems[check.Name] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

// format 将请求体中的 markdown 渲染为 Block Kit JSON，便于预览
func (s *Server) format(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormatBytes+1))
	if err != nil {
		writeJSONStatus(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if len(body) > maxFormatBytes {
		writeJSONStatus(w, map[string]string{"error": "request body too large"}, http.StatusRequestEntityTooLarge)
		return
	}

	blocks := slackify.FormatContent(string(body), s.opts...)
	writeJSONStatus(w, map[string]any{"blocks": slackapi.RenderBlocks(blocks)}, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}
