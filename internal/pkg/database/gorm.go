package database

import (
	"Parley/internal/api/config"
	"Parley/internal/model"
	"Parley/internal/pkg/logger"
	"context"
	"fmt"
	log "log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const pingTimeout = 5 * time.Second

// migrateModels AutoMigrate 管理的表
var migrateModels = []any{
	&model.User{},
	&model.Conversation{},
	&model.ConversationMember{},
}

// NewGormDB 初始化 MySQL 连接池，按配置建表
func NewGormDB(cfg *config.DBConfig) (*gorm.DB, error) {
	dialector := mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 255,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.NewGormLogger(),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	if cfg.AutoMigrate {
		if err = db.AutoMigrate(migrateModels...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("database schema migrated", "tables", len(migrateModels))
	}

	log.Info("Database connection established", "max_open", cfg.MaxOpen, "max_idle", cfg.MaxIdle)
	return db, nil
}
