package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/joho/godotenv"

	"github.com/disasterwatch/disasterwatch/internal/app"
	"github.com/disasterwatch/disasterwatch/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is fine; the environment may be set directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.SetHandler(text.New(os.Stderr))
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	application := app.New(cfg, log.Log)

	if err := application.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Stop(ctx); err != nil {
		log.WithError(err).Error("Shutdown error")
		os.Exit(1)
	}
}
