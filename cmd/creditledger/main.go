package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/veeville2011/try-this-look-sub005/internal/account"
	"github.com/veeville2011/try-this-look-sub005/internal/clock"
	"github.com/veeville2011/try-this-look-sub005/internal/config"
	"github.com/veeville2011/try-this-look-sub005/internal/consumption"
	"github.com/veeville2011/try-this-look-sub005/internal/credits"
	"github.com/veeville2011/try-this-look-sub005/internal/events"
	"github.com/veeville2011/try-this-look-sub005/internal/idempotency"
	"github.com/veeville2011/try-this-look-sub005/internal/ledger"
	"github.com/veeville2011/try-this-look-sub005/internal/logger"
	"github.com/veeville2011/try-this-look-sub005/internal/migration"
	"github.com/veeville2011/try-this-look-sub005/internal/observability/metrics"
	"github.com/veeville2011/try-this-look-sub005/internal/overage"
	"github.com/veeville2011/try-this-look-sub005/internal/renewal"
	"github.com/veeville2011/try-this-look-sub005/internal/scheduler"
	"github.com/veeville2011/try-this-look-sub005/internal/server"
	"github.com/veeville2011/try-this-look-sub005/internal/trial"
	"github.com/veeville2011/try-this-look-sub005/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(1)
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		clock.Module,
		metrics.Module,
		events.Module,
		idempotency.Module,
		ledger.Module,
		trial.Module,
		account.Module,
		overage.Module,
		consumption.Module,
		renewal.Module,
		credits.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
