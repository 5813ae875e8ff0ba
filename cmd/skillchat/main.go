package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SkillChat/internal/adapter/web"
	"SkillChat/internal/ai"
	"SkillChat/internal/app/session"
	"SkillChat/internal/config"
	"SkillChat/internal/service/catalog"

	"go.uber.org/zap"
)

func main() {
	cfg := config.NewConfig()

	// в режиме дебага — читаемые логи, иначе JSON
	newLogger := zap.NewProduction
	if cfg.DebugMode {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat := catalog.Default()
	sugar.Infow(
		"Starting app",
		"DebugMode", cfg.DebugMode,
		"BindAddr", cfg.BindAddr,
		"StubProvider", cfg.StubProvider,
		"Models", len(cat.Entries()),
	)

	factory := ai.NewFactory(ai.Options{BaseURL: cfg.OpenAIBaseURL, Stub: cfg.StubProvider}, sugar)
	registry := session.NewRegistry(session.Options{
		Catalog:         cat,
		PreferredModel:  cfg.DefaultModel,
		VisionModels:    cfg.VisionModels,
		VisionMaxTokens: int64(cfg.VisionMaxTokens),
		ImageModels:     cfg.ImageModels,
		Timeout:         cfg.RequestTimeout,
	}, factory, sugar)

	srv, err := web.NewServer(web.Options{
		BindAddr:       cfg.BindAddr,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
		VisionModels:   cfg.VisionModels,
		ImageModels:    cfg.ImageModels,
		VisionPrompt:   cfg.VisionPrompt,
		ImagePrompt:    cfg.ImagePrompt,
	}, registry, cat, sugar)
	if err != nil {
		sugar.Errorw("failed to create server", "error", err)
		return
	}
	if err := srv.Start(ctx); err != nil {
		sugar.Errorw("failed to start server", "error", err)
		return
	}

	// Очистка неактивных сессий до остановки приложения
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := registry.Run(ctx, cfg.SessionSweepInterval, cfg.SessionTTL); err != nil && !errors.Is(err, context.Canceled) {
			sugar.Warnw("session sweeper stopped", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("Shutting down...")

	shutdownCtx, cancel := context.WithTimeoutCause(context.Background(), 5*time.Second, errors.New("shutdown timeout"))
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		sugar.Warnw("server stop error", "error", err)
	}
	<-sweepDone
	sugar.Infow("app stopped")
}
