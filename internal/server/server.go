// Package server provides the relay HTTP surface: health check, the notice
// endpoint that forwards events to the notification bot, and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/larkwatch/internal/notify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxNoticeBytes caps the size of a POST /notice body.
const maxNoticeBytes = 1 << 20

// noticeSample is served on GET /notice.
const noticeSample = `<h1>Sample</h1><code>curl -X POST -H "Content-Type: application/json" -d '{"event": "New User","user":"alice","event_time":"2023-02-16T11:05:10Z", "description":"For testing"}' http://127.0.0.1:3000/notice</code>`

// Options tunes the relay server.
type Options struct {
	// RateLimit is the per-IP POST /notice rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int
	// BotTimeout is the notification round-trip limit. The write deadline
	// is derived from it. Zero means notify.DefaultTimeout.
	BotTimeout time.Duration
	// TrustProxy makes the rate limiter key on X-Forwarded-For instead of
	// the connection address. Enable only behind a reverse proxy.
	TrustProxy bool
}

// writeSlack is added to the bot timeout to cover decoding and encoding.
const writeSlack = 15 * time.Second

func (o Options) writeTimeout() time.Duration {
	timeout := o.BotTimeout
	if timeout <= 0 {
		timeout = notify.DefaultTimeout
	}
	return timeout + writeSlack
}

// Server is the relay HTTP server.
type Server struct {
	httpServer *http.Server
	bot        notify.Bot
	logger     *zap.Logger
	mux        *http.ServeMux
}

// New creates a relay server that forwards notices to bot.
func New(addr string, bot notify.Bot, logger *zap.Logger, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		bot:    bot,
		logger: logger,
		mux:    mux,
	}
	s.registerRoutes()

	// Middleware chain: outermost listed first.
	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, []string{"/metrics"}),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
	}
	if opts.RateLimit > 0 {
		burst := max(opts.RateBurst, 1)
		middlewares = append(middlewares, RateLimitMiddleware(opts.RateLimit, burst, opts.TrustProxy, []string{"POST /notice"}))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           Chain(mux, middlewares...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The bot round trip happens inside the handler.
		WriteTimeout: opts.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes sets up all routes. Anything unmatched gets a JSON 404.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /notice", s.handleNoticeSample)
	s.mux.HandleFunc("POST /notice", s.handleNotice)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns the full handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.logger.Debug("health check")
	WriteMessage(w, http.StatusOK, "server alive")
}

// handleNoticeSample shows how to call POST /notice.
func (s *Server) handleNoticeSample(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(noticeSample))
}

// handleNotice relays one event to the bot. The reply is always 200 with the
// bot's Result once the body decoded; Result.Code carries the real outcome.
func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	var ev notify.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoticeBytes))
	if err := dec.Decode(&ev); err != nil {
		s.logger.Debug("rejected notice",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		BadRequest(w, fmt.Sprintf("invalid event: %v", err))
		return
	}

	s.logger.Info("notice received",
		zap.String("event", ev.Event),
		zap.String("user", ev.User),
		zap.Time("event_time", ev.EventTime),
		zap.String("request_id", RequestID(r.Context())),
	)

	res := s.bot.Send(r.Context(), ev)
	if !res.OK() {
		s.logger.Warn("notice not delivered",
			zap.String("event", ev.Event),
			zap.Int("code", res.Code),
			zap.String("msg", res.Msg),
		)
	}

	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	NotFound(w)
}
