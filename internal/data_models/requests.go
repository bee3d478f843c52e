package dto

import "time"

type CreateTaskRequest struct {
	GroupID           string     `json:"group_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Priority          string     `json:"priority"`
	Tags              []string   `json:"tags"`
	AssigneeIDs       []string   `json:"assignee_ids"`
	CreatorID         string     `json:"creator_id"`
	ReviewerID        *string    `json:"reviewer_id"`
	StartAt           *time.Time `json:"start_at"`
	DueAt             time.Time  `json:"due_at"`
	RequireAttachment bool       `json:"require_attachment"`
}

type SubmitTaskRequest struct {
	ActorID  string   `json:"actor_id"`
	Comment  string   `json:"comment"`
	FileRefs []string `json:"file_refs"`
}

type ActorRequest struct {
	ActorID string `json:"actor_id"`
}

type RejectReviewRequest struct {
	ActorID string    `json:"actor_id"`
	NewDue  time.Time `json:"new_due"`
	Note    string    `json:"note"`
}

type CreateTemplateRequest struct {
	GroupID      string  `json:"group_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Priority     string  `json:"priority"`
	AssigneeIDs  []string `json:"assignee_ids"`
	ReviewerID   *string `json:"reviewer_id"`
	CreatorID    string  `json:"creator_id"`
	Kind         string  `json:"kind"`
	Weekday      int     `json:"weekday"`
	DayOfMonth   int     `json:"day_of_month"`
	TimeOfDay    string  `json:"time_of_day"`
	Timezone     string  `json:"timezone"`
	DurationDays int     `json:"duration_days"`
}

type ToggleTemplateRequest struct {
	Active bool `json:"active"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
}
