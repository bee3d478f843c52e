package model

import (
	"time"

	"github.com/grouptask/taskflow/internal/constants"
)

// RecurringTemplate is the schedule a task instance is stamped from. The
// scheduler advances NextRunAt after every firing; NextRunAt is always the
// smallest future timestamp consistent with the rule.
type RecurringTemplate struct {
	ID             string                   `gorm:"primaryKey;size:36" json:"id"`
	GroupID        string                   `gorm:"size:36;not null;index" json:"group_id"`
	Title          string                   `gorm:"not null" json:"title"`
	Description    string                   `json:"description"`
	Priority       constants.Priority       `gorm:"type:varchar(10);not null;default:medium" json:"priority"`
	AssigneeIDs    string                   `gorm:"not null" json:"assignee_ids"`
	ReviewerID     *string                  `gorm:"size:36" json:"reviewer_id,omitempty"`
	CreatorID      string                   `gorm:"size:36;not null" json:"creator_id"`
	Kind           constants.RecurrenceKind `gorm:"type:varchar(10);not null" json:"kind"`
	Weekday        int                      `gorm:"not null;default:0" json:"weekday"`
	DayOfMonth     int                      `gorm:"not null;default:1" json:"day_of_month"`
	TimeOfDay      string                   `gorm:"type:varchar(5);not null" json:"time_of_day"`
	Timezone       string                   `gorm:"not null" json:"timezone"`
	DurationDays   int                      `gorm:"not null;default:1" json:"duration_days"`
	NextRunAt      time.Time                `gorm:"not null;index" json:"next_run_at"`
	LastRunAt      *time.Time               `json:"last_run_at,omitempty"`
	TotalInstances int                      `gorm:"not null;default:0" json:"total_instances"`
	Active         bool                     `gorm:"not null;default:true;index" json:"active"`
	FailCount      int                      `gorm:"not null;default:0" json:"fail_count"`
	Version        uint                     `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time                `json:"created_at"`
}

func (t *RecurringTemplate) Assignees() []string {
	return SplitIDs(t.AssigneeIDs)
}
