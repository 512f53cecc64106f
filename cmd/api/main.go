package main

import (
	"Parley/internal/api/config"
	"Parley/internal/pkg/cron"
	"Parley/internal/pkg/database"
	"Parley/internal/pkg/es"
	"Parley/internal/pkg/logger"
	"Parley/internal/pkg/minio"
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/redis"
	"Parley/internal/pkg/security"
	"Parley/internal/wire"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongodb "go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger.InitLogger()

	if err := run(config.Cfg); err != nil {
		log.Error("App exited with error", "err", err)
		os.Exit(1)
	}
	log.Info("App exited successfully.")
}

func run(cfg *config.Config) error {
	db, mongoDB, err := initInfra(cfg)
	if err != nil {
		return err
	}
	defer closeInfra(db, mongoDB)

	app, err := wire.BuildApplication(db, mongoDB, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if app.IdentityProducer != nil {
		defer func() {
			if err := app.IdentityProducer.Close(); err != nil {
				log.Error("Failed to close identity producer", "err", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// 定时任务
	if err = cron.InitCron(app.CronMgr); err != nil {
		return fmt.Errorf("start cron: %w", err)
	}
	g.Go(func() error {
		<-ctx.Done()
		app.CronMgr.Stop()
		return nil
	})

	// 身份事件消费
	if app.KafkaManager != nil {
		g.Go(func() error {
			log.Info("Kafka Consumers starting...")
			return app.KafkaManager.Start(ctx)
		})
	}

	// HTTP + WebSocket
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP Server starting...", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down HTTP server...")
		// 已升级的 WebSocket 不受 Shutdown 管理，断开后由各自的心跳收尾，遗漏的由巡检任务收敛
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		return nil
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// initInfra 按依赖顺序初始化存储与外部服务，ES 未配置时跳过
func initInfra(cfg *config.Config) (*gorm.DB, *mongodb.Database, error) {
	dbCfg := cfg.DB
	db, err := database.NewGormDB(&dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: %w", err)
	}
	if err = redis.InitRedis(cfg.Redis); err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	mongoDB, err := mongo.InitMongo(cfg.Mongo)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: %w", err)
	}
	if err = minio.Init(cfg.MinIO); err != nil {
		return nil, nil, fmt.Errorf("minio: %w", err)
	}
	if es.Enabled() {
		if err = es.InitClient(); err != nil {
			return nil, nil, fmt.Errorf("elasticsearch: %w", err)
		}
	}
	security.InitJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	return db, mongoDB, nil
}

func closeInfra(db *gorm.DB, mongoDB *mongodb.Database) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := mongoDB.Client().Disconnect(ctx); err != nil {
		log.Error("Failed to disconnect mongo", "err", err)
	}
	if err := redis.Rdb.Close(); err != nil {
		log.Error("Failed to close redis", "err", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
