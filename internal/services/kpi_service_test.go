package services

import (
	"testing"
	"time"

	"github.com/grouptask/taskflow/internal/constants"
	model "github.com/grouptask/taskflow/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestClassify_Timeliness(t *testing.T) {
	scorer := NewKPIService(DefaultKPIConfig())
	due := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
	reviewer := "reviewer-1"

	cases := []struct {
		name string
		task model.Task
		want constants.KPIKind
	}{
		{
			name: "a full day ahead is early",
			task: model.Task{DueAt: due, ReviewerID: &reviewer, CompletedAt: timePtr(due.Add(-24 * time.Hour))},
			want: constants.KPIEarly,
		},
		{
			name: "exactly on the due instant is on time",
			task: model.Task{DueAt: due, ReviewerID: &reviewer, CompletedAt: timePtr(due)},
			want: constants.KPIOnTime,
		},
		{
			name: "just under the margin is on time",
			task: model.Task{DueAt: due, ReviewerID: &reviewer, CompletedAt: timePtr(due.Add(-23 * time.Hour))},
			want: constants.KPIOnTime,
		},
		{
			name: "two days past due after sitting overdue is late",
			task: model.Task{DueAt: due, ReviewerID: &reviewer, WasOverdue: true, CompletedAt: timePtr(due.Add(48 * time.Hour))},
			want: constants.KPILate,
		},
		{
			name: "past due without the overdue overlay is still late",
			task: model.Task{DueAt: due, ReviewerID: &reviewer, CompletedAt: timePtr(due.Add(time.Hour))},
			want: constants.KPILate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scorer.Classify(&tc.task); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassify_NoReviewUsesSubmissionTime(t *testing.T) {
	scorer := NewKPIService(DefaultKPIConfig())
	due := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)

	// Submitted well ahead; approval dragged past the due time. Without a
	// reviewer the submission is the outcome that counts.
	task := model.Task{
		DueAt:       due,
		SubmittedAt: timePtr(due.Add(-48 * time.Hour)),
		CompletedAt: timePtr(due.Add(12 * time.Hour)),
	}

	if got := scorer.Classify(&task); got != constants.KPIEarly {
		t.Errorf("expected early from the submission time, got %s", got)
	}
}

func TestPoints_PriorityWeighting(t *testing.T) {
	scorer := NewKPIService(DefaultKPIConfig())

	cases := []struct {
		kind     constants.KPIKind
		priority constants.Priority
		want     int
	}{
		{constants.KPIEarly, constants.PriorityHigh, 45},
		{constants.KPIEarly, constants.PriorityLow, 15},
		{constants.KPIOnTime, constants.PriorityMedium, 20},
		{constants.KPILate, constants.PriorityLow, 5},
		{constants.KPIOverdue, constants.PriorityHigh, 0},
	}

	for _, tc := range cases {
		if got := scorer.Points(tc.kind, tc.priority); got != tc.want {
			t.Errorf("%s/%s: expected %d points, got %d", tc.kind, tc.priority, tc.want, got)
		}
	}
}

func TestRecordsForCompletion_OnePerAssignee(t *testing.T) {
	scorer := NewKPIService(DefaultKPIConfig())
	due := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
	now := due.Add(-30 * time.Hour)

	task := model.Task{
		ID:          "task-1",
		GroupID:     "group-1",
		Priority:    constants.PriorityMedium,
		AssigneeIDs: "user-1,user-2,user-3",
		DueAt:       due,
		SubmittedAt: timePtr(now),
		CompletedAt: timePtr(now),
	}

	recs := scorer.RecordsForCompletion(&task, now)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Kind != constants.KPIEarly || rec.Points != 30 {
			t.Errorf("all assignees share task-level timestamps: %+v", rec)
		}
	}
}
