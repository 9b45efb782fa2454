package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/broker"
	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/db"
	httpx "github.com/geocoder89/accounts/internal/http"
	"github.com/geocoder89/accounts/internal/http/handlers"
	"github.com/geocoder89/accounts/internal/observability"
	"github.com/geocoder89/accounts/internal/repo/memory"
	"github.com/geocoder89/accounts/internal/repo/postgres"
	"github.com/geocoder89/accounts/internal/security"
	"github.com/geocoder89/accounts/internal/service"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type userStore interface {
	service.UserStore
	handlers.Pinger
}

func main() {
	// a missing .env is fine outside local development
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.OTel.Enabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: cfg.OTel.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OTel.Endpoint,
			SampleRatio: cfg.OTel.SampleRatio,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, cancel := config.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	ready := map[string]handlers.Pinger{}

	var store userStore

	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory user store; data is lost on restart")
		store = memory.NewUsersRepo()
	default:
		pool, err := db.NewPool(ctx, cfg.DB.URL(), cfg.DB.MaxConns)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.DB.AutoMigrate {
			if err := db.EnsureSchema(ctx, pool); err != nil {
				log.Error("db schema failed", "err", err)
				os.Exit(1)
			}
		}
		store = postgres.NewUsersRepo(pool, prom)
	}
	ready["store"] = store

	hasher := security.NewHasher(cfg.BcryptCost)

	seeded, err := db.EnsureAdminUser(ctx, store, hasher, cfg.Admin)
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if seeded {
		log.Info("admin user created", "email", cfg.Admin.Email)
	}

	issuer := auth.NewIssuer(auth.Config{
		AccessSecret:  cfg.JWT.Secret,
		AccessTTL:     cfg.JWT.Expire.Duration(),
		RefreshSecret: cfg.JWT.RefreshSecret,
		RefreshTTL:    cfg.JWT.RefreshExpire.Duration(),
	})

	// publisher chain: transport -> breaker -> async queue
	var transport broker.Publisher

	if cfg.Redis.Addr != "" {
		rdb := broker.NewRedisClient(broker.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		redisPublisher := broker.NewRedisPublisher(rdb, cfg.Events.StreamPrefix, cfg.Events.StreamMaxLen)
		ready["broker"] = redisPublisher

		transport = broker.NewProtectedPublisher(redisPublisher, broker.ProtectedConfig{
			Timeout:          2 * time.Second,
			FailureThreshold: 3,
			Cooldown:         15 * time.Second,
		})
	} else {
		log.Warn("REDIS_ADDR not set; account events are logged only")
		transport = broker.NewLogPublisher(log)
	}

	events := broker.NewAsyncPublisher(transport, cfg.Events.Workers, cfg.Events.Buffer, log, prom)

	var draining atomic.Bool

	authSvc := service.NewAuthService(store, hasher, issuer, events, log, prom)
	userSvc := service.NewUserService(store, hasher, events, log)

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Auth:     authSvc,
		Users:    userSvc,
		Tokens:   issuer,
		Ready:    ready,
		Draining: draining.Load,
		Prom:     prom,
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")
	draining.Store(true)

	shutdownCtx, cancel := config.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	// in-flight requests are done; flush queued events before closing the broker
	if err := events.Close(shutdownCtx); err != nil {
		log.Error("event publisher drain failed", "err", err)
	}

	log.Info("shutdown complete")
}
