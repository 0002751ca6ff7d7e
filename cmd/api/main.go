package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-router/internal/auth"
	"call-router/internal/callstate"
	"call-router/internal/config"
	"call-router/internal/ivr"
	"call-router/internal/metrics"
	"call-router/internal/store"
	"call-router/internal/telnyx"
	"call-router/pkg/logger"
	"call-router/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Debug)
	slog.SetDefault(log)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(rootCtx, cfg)
	if err != nil {
		log.Error("store init failed", "driver", cfg.DB.Driver, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	routed, ended, err := openCallState(rootCtx, cfg, log)
	if err != nil {
		log.Error("call state init failed", "err", err)
		os.Exit(1)
	}

	provider := telnyx.NewClient(telnyx.ClientConfig{
		APIKey:  cfg.Telnyx.APIKey,
		APIBase: cfg.Telnyx.APIBase,
		Logger:  log,
	})

	destinations := make(map[ivr.Department]string)
	for dept, uri := range cfg.DepartmentURIs() {
		destinations[ivr.Department(dept)] = uri
	}
	router := ivr.NewRouter(provider, st, routed, ended, destinations, log)

	var metricsAuth gin.HandlerFunc
	if cfg.Metrics.JWTSecret != "" {
		mgr, err := auth.NewManager(cfg.Metrics.JWTSecret)
		if err != nil {
			log.Error("metrics auth init failed", "err", err)
			os.Exit(1)
		}
		metricsAuth = auth.RequireBearer(mgr)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, router, metrics.Handlers{Service: metrics.NewService(st)}, metricsAuth)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "driver", cfg.DB.Driver, "debug", cfg.App.Debug)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.DB.Driver == config.DriverPostgres {
		return store.NewPostgresStore(ctx, cfg.PostgresDSN())
	}
	return store.NewSQLiteStore(ctx, cfg.DB.SQLitePath)
}

// openCallState picks the routed/ended set backend. Redis makes the sets
// survive restarts; the in-memory default forgets them, which is an accepted
// limitation of the single-process deployment.
func openCallState(ctx context.Context, cfg config.Config, log *slog.Logger) (routed, ended callstate.Set, err error) {
	if cfg.Redis.Addr == "" {
		return callstate.NewMemorySet(), callstate.NewMemorySet(), nil
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.Redis.Addr})
	if err != nil {
		return nil, nil, err
	}
	routed, err = callstate.NewRedisSet(rdb, "call-router:routed")
	if err != nil {
		return nil, nil, err
	}
	ended, err = callstate.NewRedisSet(rdb, "call-router:ended")
	if err != nil {
		return nil, nil, err
	}
	log.Info("call state in redis", "addr", cfg.Redis.Addr)
	return routed, ended, nil
}
