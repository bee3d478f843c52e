package constants

// KPIKind classifies how timely a task outcome was. It is a historical
// judgement recorded once per (task, assignee); the task's own status keeps
// moving independently.
type KPIKind string

const (
	KPIEarly   KPIKind = "early"
	KPIOnTime  KPIKind = "ontime"
	KPILate    KPIKind = "late"
	KPIOverdue KPIKind = "overdue"
)

// History actions, one per state-machine event plus task creation.
const (
	ActionCreate        = "create"
	ActionSubmit        = "submit"
	ActionRequestReview = "request_review"
	ActionApproveReview = "approve_review"
	ActionRejectReview  = "reject_review"
	ActionApprove       = "approve_completion"
	ActionMarkOverdue   = "mark_overdue"
	ActionCancel        = "cancel"
)

// SystemActor attributes time-triggered transitions that no user initiated.
const SystemActor = "system"

type PeriodName string

const (
	PeriodWeekly  PeriodName = "weekly"
	PeriodMonthly PeriodName = "monthly"
	PeriodCustom  PeriodName = "custom"
)
