package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-weekly-planner/internal/app"
	"ai-weekly-planner/internal/config"
	"ai-weekly-planner/internal/database"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/metrics"
	"ai-weekly-planner/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// 2. Generation backend
	gen, closeGen, err := app.NewGenerator(ctx, cfg)
	if err != nil {
		log.Fatal("failed to create generation client", "error", err)
	}
	defer closeGen()

	// 3. Storage
	db, err := database.NewDB(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	metricsStore := metrics.NewStore(db.SQL)
	defer metricsStore.Close()

	// 4. Services
	mealPlanner, err := app.NewPlanner(cfg, gen, log)
	if err != nil {
		log.Fatal("failed to configure planner", "error", err)
	}
	application := app.NewApp(mealPlanner, metricsStore, app.NewGhostClient(cfg), log.Named("app"))

	// 5. Telegram Bot
	bot, err := telegram.NewBot(cfg, application, metricsStore, log.Named("telegram"))
	if err != nil {
		log.Fatal("failed to initialize telegram bot", "error", err)
	}

	// 6. Start Server with Graceful Shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		log.Info("telegram bot server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exiting")
}
