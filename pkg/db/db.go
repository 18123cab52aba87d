// Package db provides the shared gorm connection.
package db

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/veeville2011/try-this-look-sub005/internal/config"
)

// Open connects to postgres using the configured DSN.
func Open(cfg config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
}

// Module provides *gorm.DB and closes the pool on shutdown.
var Module = fx.Module("db",
	fx.Provide(func(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
		conn, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				log.Info("closing database pool")
				return sqlDB.Close()
			},
		})
		return conn, nil
	}),
)
