package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/auth"
	"github.com/hermes-hub/hermes/internal/v1/broker"
	"github.com/hermes-hub/hermes/internal/v1/config"
	"github.com/hermes-hub/hermes/internal/v1/health"
	"github.com/hermes-hub/hermes/internal/v1/httpapi"
	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/store"
	"github.com/hermes-hub/hermes/internal/v1/tracing"
	"github.com/hermes-hub/hermes/internal/v1/voice"
)

const sessionPurgeInterval = time.Hour

func main() {
	// Load .env for local development. Try a few paths to handle different
	// ways of running the binary.
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync()

	ctx := context.Background()

	if cfg.OtelEnabled {
		tp, err := tracing.InitTracer(ctx, "hermes-hub", cfg.OtelCollectorAddr)
		if err != nil {
			logging.Error(ctx, "failed to initialize tracer", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logging.Error(ctx, "tracer shutdown failed", zap.Error(err))
			}
		}()
		logging.Info(ctx, "tracing initialized", zap.String("collector", cfg.OtelCollectorAddr))
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logging.Error(ctx, "failed to open store", zap.String("path", cfg.DatabasePath), zap.Error(err))
		os.Exit(1)
	}
	logging.Info(ctx, "store ready", zap.String("path", cfg.DatabasePath))

	// Cross-instance fan-out is optional. A Redis failure at startup degrades
	// to single-instance mode instead of refusing to boot.
	var bridge *broker.RedisBridge
	if cfg.RedisEnabled {
		bridge, err = broker.NewRedisBridge(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Error(ctx, "failed to connect to Redis, running in single-instance mode",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
			bridge = nil
		} else {
			logging.Info(ctx, "Redis bridge connected", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logging.Info(ctx, "running in single-instance mode (Redis disabled)")
	}

	events := broker.New(bridge)
	voiceMgr := voice.NewManager(events, cfg.STUNURLs)
	authSvc := auth.NewService(st, cfg.SessionTTL, cfg.BcryptCost)

	var redisPinger health.Pinger
	if bridge != nil {
		redisPinger = bridge
	}
	readiness := health.NewHandler(st, redisPinger)

	api := httpapi.New(cfg, st, authSvc, events, voiceMgr)
	router := api.Router(readiness)

	// Background sweep so the sessions table does not accumulate expired rows.
	purgeCtx, stopPurge := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				n, err := st.PurgeExpiredSessions(purgeCtx)
				if err != nil {
					logging.Error(purgeCtx, "session purge failed", zap.Error(err))
				} else if n > 0 {
					logging.Info(purgeCtx, "purged expired sessions", zap.Int64("count", n))
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "hub starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "server failed", zap.Error(err))
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	stopPurge()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Drain realtime state before the HTTP listener so clients get close
	// frames instead of resets.
	events.Shutdown(shutdownCtx)
	voiceMgr.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}

	if bridge != nil {
		if err := bridge.Close(); err != nil {
			logging.Error(ctx, "failed to close Redis bridge", zap.Error(err))
		}
	}
	if err := st.Close(); err != nil {
		logging.Error(ctx, "failed to close store", zap.Error(err))
	}

	logging.Info(ctx, "hub exited")
}
