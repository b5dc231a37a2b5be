package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"rwa-shop-backend/internal/client"
	"rwa-shop-backend/internal/config"
	"rwa-shop-backend/internal/repository"
	"rwa-shop-backend/internal/worker"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	db, err := client.InitDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database init failed", "error", err)
		os.Exit(1)
	}

	jobRepo := repository.NewMintJobRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	minter := client.NewMinterClient(&cfg.Minter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < cfg.MintQueue.WorkerCount; i++ {
		w := worker.NewMintWorker(db, jobRepo, orderRepo, minter, cfg.MintQueue, cfg.Minter.Timeout)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	<-ctx.Done()
	slog.Info("signal received, waiting for in-flight mint attempts")
	wg.Wait()
	slog.Info("mint worker shut down")
}

func setupLogger(cfg config.Log) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
