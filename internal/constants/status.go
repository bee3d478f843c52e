package constants

// TaskStatus is the single source of truth for a task's position in the
// workflow. Transitions between statuses are validated by the task service;
// nothing else writes this field.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusSubmitted  TaskStatus = "submitted"
	StatusReviewed   TaskStatus = "reviewed"
	StatusApproved   TaskStatus = "approved"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
	StatusOverdue    TaskStatus = "overdue"
	StatusRejected   TaskStatus = "rejected"
)

// Terminal reports whether no further workflow transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type ReviewStatus string

const (
	ReviewNotRequested ReviewStatus = "not_requested"
	ReviewPending      ReviewStatus = "pending"
	ReviewApproved     ReviewStatus = "approved"
	ReviewRejected     ReviewStatus = "rejected"
)

type ApprovalStatus string

const (
	ApprovalNotRequested ApprovalStatus = "not_requested"
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
