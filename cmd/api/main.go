package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/propledger/pkg/config"
	"github.com/mcclellann/propledger/pkg/store"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := conf.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sqliteStore, err := store.NewSQLiteStore(conf.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize SQLite store", zap.String("path", conf.Database.Path), zap.Error(err))
	}
	defer sqliteStore.Close()
	logger.Info("Database ready", zap.String("path", conf.Database.Path))

	server := NewServer(sqliteStore, conf, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if conf.Benchmark.RefreshInterval > 0 {
		go server.runBenchmarkFill(ctx, conf.Benchmark.RefreshInterval)
	}

	httpServer := &http.Server{
		Addr:         conf.HTTP.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  conf.HTTP.ReadTimeout,
		WriteTimeout: conf.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", conf.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("Server failed", zap.Error(err))
		return
	case <-quit:
		logger.Info("Shutting down server")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
