package main

import (
	"log/slog"
	"os"

	_ "colabtrack/docs"
	"colabtrack/internal/config"
	"colabtrack/internal/server"
)

// @title           Colabtrack API
// @version         1.0
// @description     API for collaborative projects, task graphs and versioned attachments.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	s, err := server.Init(cfg, log)
	if err != nil {
		log.Error("server initialization failed", "error", err)
		os.Exit(1)
	}

	if err := s.Run(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
