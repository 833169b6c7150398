package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/adapters/auth"
	chatws "github.com/dkeye/Huddle/internal/adapters/chat"
	"github.com/dkeye/Huddle/internal/adapters/engine"
	router "github.com/dkeye/Huddle/internal/adapters/http"
	signalws "github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/adapters/store"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/chat"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/app/sfu"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	eng := engine.New(engine.Config{
		ListenIP:    cfg.Media.ListenIP,
		AnnouncedIP: cfg.Media.AnnouncedIP,
		MinPort:     cfg.Media.MinPort,
		MaxPort:     cfg.Media.MaxPort,
	})

	pool := sfu.NewWorkerPool(eng, cfg.WorkerGrace, func() {
		log.Error().Msg("media worker grace expired, terminating")
		os.Exit(1)
	})
	if err := pool.Start(ctx, cfg.Media.Workers); err != nil {
		log.Fatal().Err(err).Msg("failed to start media workers")
	}
	defer pool.Close()

	rooms := app.NewRoomRegistry(pool, app.DefaultMediaCodecs)
	peers := app.NewPeerStore()
	orchestrator := &orch.Orchestrator{
		Rooms:         rooms,
		Peers:         peers,
		Pool:          pool,
		EngineTimeout: cfg.EngineTimeout,
	}

	var convStore core.ConversationStore
	switch cfg.Store {
	case "redis":
		rs, err := store.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		convStore = rs
	default:
		convStore = store.NewMemoryStore()
	}

	registry := app.NewConnectionRegistry()
	chatSvc := chat.NewService(registry, convStore)
	tokens := auth.NewJWT(cfg.JWTSecret, cfg.SessionTTL)
	limiter := chatws.NewMessageRateLimiter(cfg.ChatRateLimit, cfg.ChatRateEvery)

	deps := router.Deps{
		Orch:   orchestrator,
		Signal: signalws.NewController(orchestrator, cfg),
		Chat:   chatws.NewController(chatSvc, registry, tokens, limiter),
		Tokens: tokens,
	}

	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
