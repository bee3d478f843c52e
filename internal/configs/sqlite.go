package config

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	model "github.com/grouptask/taskflow/internal/models"
)

func NewDatabase(dsn string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// Required for the task -> KPI record cascade.
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		log.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Task{},
		&model.TaskSubmission{},
		&model.TaskHistory{},
		&model.RecurringTemplate{},
		&model.KPIRecord{},
		&model.GroupMember{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	return db
}
