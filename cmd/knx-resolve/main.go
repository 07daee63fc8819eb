package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"knx-resolve/internal/config"
	"knx-resolve/internal/database"
	httpapi "knx-resolve/internal/http"
	"knx-resolve/internal/logger"
	"knx-resolve/internal/repository"
	"knx-resolve/internal/resolver"
	"knx-resolve/internal/service"
	"knx-resolve/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "knx-resolve")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to catalog database", zap.Error(err))
	}

	// Redis 缓存可选：未启用时解析结果不缓存，discovery 也不做在途去重
	var kv store.KV
	var redisClient *redis.Client
	if cfg.CacheEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = store.NewRedisKV(redisClient)
	}

	repo := repository.NewPostgresCatalogRepository(db)
	lookup := resolver.NewStoreLookup(repo, log)

	var interpreter resolver.Interpreter
	if cfg.Oracle.APIKey != "" {
		interpreter = resolver.NewOracleClient(cfg.Oracle.APIURL, cfg.Oracle.APIKey, cfg.Oracle.Model, log)
		log.Info("Interpretation oracle enabled", zap.String("model", cfg.Oracle.Model))
	} else {
		log.Info("Interpretation oracle disabled (no API key)")
	}

	discovery := resolver.NewDiscoveryTrigger(
		cfg.Search.APIURL, cfg.Search.APIKey,
		cfg.Extract.APIURL, cfg.Extract.ServiceKey,
		kv, log,
	)
	if discovery.Enabled() {
		log.Info("Auto-discovery enabled")
	} else {
		log.Info("Auto-discovery disabled (missing search or extraction key)")
	}

	runner := resolver.NewTaskRunner(log)
	res := resolver.NewResolver(repo, lookup, interpreter,
		resolver.NewProvisionalWriter(repo, log), discovery, runner, log)

	router := httpapi.NewRouter(log)
	router.RegisterResolveRoutes(httpapi.NewResolveHandler(res, kv, log))
	router.RegisterHealthRoutes(httpapi.NewHealthHandler())

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)

	// 尽量等在途 discovery 收尾（超时就放弃，discovery 本身容忍丢失）
	done := make(chan struct{})
	go func() {
		res.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = database.Close(db)
}
