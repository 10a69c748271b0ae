// Package api provides the HTTP server for Tripmate.
//
// It exposes the Telegram webhook endpoint that feeds updates into the
// dispatcher, plus a health endpoint for probes.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Dispatcher is the slice of the bot dispatcher the server needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, update tgbotapi.Update)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	WebhookSecret string
	Version       string
	StoreDriver   string
}

// Server wires the webhook endpoint to the dispatcher.
type Server struct {
	dispatcher Dispatcher
	opts       Opts
	startedAt  time.Time
	httpServer *http.Server
}

// NewServer creates the API server. The webhook secret must be non-empty;
// an unauthenticated webhook would let anyone drive the bot.
func NewServer(dispatcher Dispatcher, opts Opts) (*Server, error) {
	if opts.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	return &Server{dispatcher: dispatcher, opts: opts, startedAt: time.Now()}, nil
}

// Run starts the HTTP server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/telegram", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.opts.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run: API server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Run: listener failed", "error", err)
		return err
	}
}
