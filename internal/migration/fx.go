package migration

import (
	"github.com/smallbiznis/medisub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		if cfg.Type != "postgres" {
			log.Info("auto-migrating schema", zap.String("dialect", cfg.Type))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
