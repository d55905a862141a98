package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	botpkg "danmakubot/bot"
)

// Server accepts playback notifications from the media server and
// feeds them to the Emby processor.
type Server struct {
	httpServer *http.Server
	processor  *EmbyProcessor
	apiKey     string
	logger     botpkg.Logger
}

// NewServer builds the webhook HTTP server on the given port.
func NewServer(port int, apiKey string, processor *EmbyProcessor, logger botpkg.Logger) *Server {
	s := &Server{
		processor: processor,
		apiKey:    apiKey,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/webhook/emby", s.handleEmby)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("webhook: listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleEmby(w http.ResponseWriter, r *http.Request) {
	provided := r.URL.Query().Get("api_key")
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(s.apiKey)) != 1 {
		s.logger.Warn("webhook: rejected request with bad api key")
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   "API密钥验证失败",
		})
		return
	}

	var event EmbyEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "无法解析通知数据",
		})
		return
	}

	if event.Event != "playback.start" {
		s.logger.Debug("webhook: ignoring event", "event", event.Event)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"processed": false,
			"message":   fmt.Sprintf("事件 %s 已忽略", event.Event),
		})
		return
	}

	s.processor.Enqueue(event)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"processed": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
