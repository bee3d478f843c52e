package model

import (
	"strings"
	"time"

	"github.com/grouptask/taskflow/internal/constants"
)

type Task struct {
	ID                string                   `gorm:"primaryKey;size:36" json:"id"`
	GroupID           string                   `gorm:"size:36;not null;index" json:"group_id"`
	Title             string                   `gorm:"not null" json:"title"`
	Description       string                   `json:"description"`
	Priority          constants.Priority       `gorm:"type:varchar(10);not null;default:medium" json:"priority"`
	Tags              string                   `json:"tags"`
	AssigneeIDs       string                   `gorm:"not null" json:"assignee_ids"`
	CreatorID         string                   `gorm:"size:36;not null" json:"creator_id"`
	TemplateID        *string                  `gorm:"size:36;index" json:"template_id,omitempty"`
	Status            constants.TaskStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	RequireAttachment bool                     `gorm:"not null;default:false" json:"require_attachment"`
	ReviewerID        *string                  `gorm:"size:36" json:"reviewer_id,omitempty"`
	ReviewStatus      constants.ReviewStatus   `gorm:"type:varchar(20);not null;default:not_requested" json:"review_status"`
	ReviewRequestedAt *time.Time               `json:"review_requested_at,omitempty"`
	ReviewResolvedAt  *time.Time               `json:"review_resolved_at,omitempty"`
	ApprovalStatus    constants.ApprovalStatus `gorm:"type:varchar(20);not null;default:not_requested" json:"approval_status"`
	WasOverdue        bool                     `gorm:"not null;default:false" json:"was_overdue"`
	StartAt           *time.Time               `json:"start_at,omitempty"`
	DueAt             time.Time                `gorm:"not null;index" json:"due_at"`
	SubmittedAt       *time.Time               `json:"submitted_at,omitempty"`
	ReviewedAt        *time.Time               `json:"reviewed_at,omitempty"`
	ApprovedAt        *time.Time               `json:"approved_at,omitempty"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	Version           uint                     `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time                `json:"created_at"`
}

// ReviewRequired reports whether this task must pass review before
// completion can be approved.
func (t *Task) ReviewRequired() bool {
	return t.ReviewerID != nil && *t.ReviewerID != ""
}

func (t *Task) Assignees() []string {
	return SplitIDs(t.AssigneeIDs)
}

// TaskSubmission is one submit event. Rows are append-only, ordered by Seq.
type TaskSubmission struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID      string    `gorm:"size:36;not null;index" json:"task_id"`
	Seq         int       `gorm:"not null" json:"seq"`
	ActorID     string    `gorm:"size:36;not null" json:"actor_id"`
	Comment     string    `json:"comment"`
	FileRefs    string    `json:"file_refs"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`
}

// TaskHistory is the audit trail. Exactly one row is appended per
// transition, inside the same transaction; rows are never updated.
type TaskHistory struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID  string    `gorm:"size:36;not null;index" json:"task_id"`
	Seq     int       `gorm:"not null" json:"seq"`
	Action  string    `gorm:"type:varchar(30);not null" json:"action"`
	ActorID string    `gorm:"size:36;not null" json:"actor_id"`
	Note    string    `json:"note"`
	At      time.Time `gorm:"not null" json:"at"`
}

// SplitIDs parses a comma-joined id column; empty input yields nil.
func SplitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func JoinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
