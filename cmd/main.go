package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"triage-agent/handler"
	"triage-agent/internal/bootstrap"
	"triage-agent/internal/config"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// ---- Service ----
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to build consultation service", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	// ---- Handler ----
	h, err := handler.NewHandler(app.Service)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		_ = app.Close()
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
