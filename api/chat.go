// Package handler is the Vercel Go function for POST /api/chat.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"chat-relay/internal/app"
	"chat-relay/internal/config"
)

var chat http.Handler

func init() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		chat = http.HandlerFunc(configError)
		return
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	h, err := app.Build(context.Background(), cfg, os.LookupEnv, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		chat = http.HandlerFunc(configError)
		return
	}
	chat = h
}

// Handler is the entry point invoked by the Vercel Go runtime.
func Handler(w http.ResponseWriter, r *http.Request) {
	chat.ServeHTTP(w, r)
}

func configError(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"server configuration error","code":"CONFIG_ERROR"}`))
}
