package model

import (
	"time"

	"github.com/grouptask/taskflow/internal/constants"
)

// KPIRecord is written exactly once per (task, assignee) when the task
// reaches a terminal outcome, and is immutable afterwards. Deleting the
// owning task cascades here.
type KPIRecord struct {
	ID         string               `gorm:"primaryKey;size:36" json:"id"`
	GroupID    string               `gorm:"size:36;not null;index" json:"group_id"`
	UserID     string               `gorm:"size:36;not null;index;uniqueIndex:idx_kpi_task_user" json:"user_id"`
	TaskID     string               `gorm:"size:36;not null;uniqueIndex:idx_kpi_task_user" json:"task_id"`
	Task       *Task                `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
	Kind       constants.KPIKind    `gorm:"type:varchar(10);not null" json:"kind"`
	Priority   constants.Priority   `gorm:"type:varchar(10);not null" json:"priority"`
	Points     int                  `gorm:"not null" json:"points"`
	RecordedAt time.Time            `gorm:"not null;index" json:"recorded_at"`
}

// GroupMember is a (group, user) membership row. The scheduler reads it to
// expand the team sentinel at materialization time so membership changes are
// reflected in new occurrences.
type GroupMember struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID  string    `gorm:"size:36;not null;uniqueIndex:idx_group_user" json:"group_id"`
	UserID   string    `gorm:"size:36;not null;uniqueIndex:idx_group_user" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
