package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/illustrator/internal/ai"
	cfgpkg "github.com/local/illustrator/internal/config"
	"github.com/local/illustrator/internal/imagegen"
	"github.com/local/illustrator/internal/limiter"
	logpkg "github.com/local/illustrator/internal/logger"
	"github.com/local/illustrator/internal/metrics"
	"github.com/local/illustrator/internal/orchestrator"
	"github.com/local/illustrator/internal/planner"
	"github.com/local/illustrator/internal/rehost"
	"github.com/local/illustrator/internal/statuscheck"
	"github.com/local/illustrator/internal/storage"
	"github.com/local/illustrator/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Material/rewrite store
	ms, err := store.NewMaterialStore(cfg.Store.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init material store")
	}
	defer ms.Close()

	// Object store for rehosted images
	ctx := context.Background()
	s3c, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init object storage")
	}

	// Planning LLM
	llm, err := ai.NewOpenRouterClient(cfg.Planner)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init planner client")
	}

	// Image provider breaker (optional but shares the store's redis)
	brk, err := limiter.New(limiter.Options{RedisURL: cfg.Store.RedisURL})
	if err != nil {
		log.Warn().Err(err).Msg("breaker disabled")
		brk = nil
	} else {
		defer brk.CloseClient()
	}

	checker := statuscheck.New(statuscheck.Options{
		Redis:         ms,
		Storage:       s3c,
		OpenRouterKey: cfg.Planner.APIKey,
		FALKey:        cfg.ImageGen.APIKey,
	})

	deps := orchestrator.Dependencies{
		Store:       ms,
		Planner:     planner.New(llm),
		Images:      imagegen.NewClient(cfg.ImageGen),
		Rehost:      rehost.New(s3c, cfg.Rehost),
		Checker:     checker,
		CoverWidth:  cfg.ImageGen.CoverWidth,
		CoverHeight: cfg.ImageGen.CoverHeight,
	}
	if brk != nil {
		deps.Breaker = brk
	}

	orch := orchestrator.New(deps)
	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("shutdown complete")
}
