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

	"go.uber.org/zap"

	"dalmuti/internal/config"
	"dalmuti/internal/server"
	"dalmuti/internal/server/store"
)

func main() {
	settings, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(settings.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	gameCfg, err := config.LoadGameConfig(settings.GameConfig)
	if err != nil {
		logger.Fatal("load game config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := store.Open(ctx, settings.Ledger, settings.DataDir, settings.DatabaseDSN)
	if err != nil {
		logger.Fatal("open results ledger", zap.String("mode", settings.Ledger), zap.Error(err))
	}
	defer func() {
		if cerr := ledger.Close(); cerr != nil {
			logger.Warn("close results ledger", zap.Error(cerr))
		}
	}()

	hub := server.NewHub(server.RoomConfig{
		TurnDuration: gameCfg.TurnDuration(),
		RoundDelay:   gameCfg.RoundDelay(),
		AbandonAfter: gameCfg.AbandonAfter(),
		TimerEnabled: gameCfg.TimerEnabled,
		Rules:        gameCfg.Rules,
	}, ledger, logger)

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           server.NewRouter(hub, ledger, settings.WebDir, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("dalmuti server listening",
		zap.String("addr", settings.Addr),
		zap.String("ledger", settings.Ledger),
		zap.Int("minPlayers", gameCfg.Rules.MinPlayers()),
		zap.Int("maxPlayers", gameCfg.Rules.MaxPlayers()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
