package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/logger"
)

// Models 参与迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&model.Worker{},
		&model.Site{},
		&model.WorkSession{},
		&model.PresenceSnapshot{},
		&model.PresenceHistory{},
		&model.LunchRecord{},
		&model.DailyWorkSummary{},
		&model.AbsenceRecord{},
		&model.AbsenceNotice{},
		&model.ScheduledAssignment{},
	}
}

// MigrateDB 对给定连接运行迁移，测试中的 sqlite 连接也走这里
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	log := logger.Named("migrate")
	log.Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return err
	}

	log.Info("Database migration completed successfully")
	return nil
}
