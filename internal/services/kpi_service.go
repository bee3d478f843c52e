package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/grouptask/taskflow/internal/constants"
	model "github.com/grouptask/taskflow/internal/models"
)

// KPIConfig is the whole scoring policy. Points are a pure function of
// classification and priority weight; nothing else feeds the score.
type KPIConfig struct {
	// EarlyMargin is the minimum lead over the due time for an early rating.
	EarlyMargin time.Duration
	// Grace is how long past due an overdue task waits before the terminal
	// overdue outcome is recorded.
	Grace           time.Duration
	BasePoints      map[constants.KPIKind]int
	PriorityWeights map[constants.Priority]int
}

func DefaultKPIConfig() KPIConfig {
	return KPIConfig{
		EarlyMargin: 24 * time.Hour,
		Grace:       24 * time.Hour,
		BasePoints: map[constants.KPIKind]int{
			constants.KPIEarly:   15,
			constants.KPIOnTime:  10,
			constants.KPILate:    5,
			constants.KPIOverdue: 0,
		},
		PriorityWeights: map[constants.Priority]int{
			constants.PriorityLow:    1,
			constants.PriorityMedium: 2,
			constants.PriorityHigh:   3,
		},
	}
}

type KPIService struct {
	cfg KPIConfig
}

func NewKPIService(cfg KPIConfig) *KPIService {
	return &KPIService{cfg: cfg}
}

// Classify rates a completed task against its due time. When the task never
// required review the submission time is the outcome time, since approval is
// then a formality that may lag the actual work.
func (s *KPIService) Classify(task *model.Task) constants.KPIKind {
	outcome := task.CompletedAt
	if !task.ReviewRequired() && task.SubmittedAt != nil {
		outcome = task.SubmittedAt
	}
	if outcome == nil {
		return constants.KPIOverdue
	}

	if !outcome.After(task.DueAt) {
		if task.DueAt.Sub(*outcome) >= s.cfg.EarlyMargin {
			return constants.KPIEarly
		}
		return constants.KPIOnTime
	}

	// Completion after the due time is never on time, whether or not the
	// overdue sweep caught the task first.
	return constants.KPILate
}

func (s *KPIService) Points(kind constants.KPIKind, priority constants.Priority) int {
	weight, ok := s.cfg.PriorityWeights[priority]
	if !ok {
		weight = 1
	}
	return s.cfg.BasePoints[kind] * weight
}

// PastGrace reports whether an overdue task has exhausted its grace window.
func (s *KPIService) PastGrace(task *model.Task, now time.Time) bool {
	return !now.Before(task.DueAt.Add(s.cfg.Grace))
}

// RecordsForCompletion builds one record per assignee, all from the same
// task-level timestamps.
func (s *KPIService) RecordsForCompletion(task *model.Task, now time.Time) []*model.KPIRecord {
	return s.records(task, s.Classify(task), now)
}

// RecordsForOverdue builds the terminal overdue outcome for a task that ran
// out its grace window without completion.
func (s *KPIService) RecordsForOverdue(task *model.Task, now time.Time) []*model.KPIRecord {
	return s.records(task, constants.KPIOverdue, now)
}

func (s *KPIService) records(task *model.Task, kind constants.KPIKind, now time.Time) []*model.KPIRecord {
	assignees := task.Assignees()
	recs := make([]*model.KPIRecord, 0, len(assignees))
	for _, userID := range assignees {
		recs = append(recs, &model.KPIRecord{
			ID:         uuid.NewString(),
			GroupID:    task.GroupID,
			UserID:     userID,
			TaskID:     task.ID,
			Kind:       kind,
			Priority:   task.Priority,
			Points:     s.Points(kind, task.Priority),
			RecordedAt: now,
		})
	}
	return recs
}
