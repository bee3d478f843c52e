package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/grouptask/taskflow/internal/clock"
	"github.com/grouptask/taskflow/internal/constants"
	apperrors "github.com/grouptask/taskflow/internal/errors"
	model "github.com/grouptask/taskflow/internal/models"
	"github.com/grouptask/taskflow/internal/recurrence"
	repository "github.com/grouptask/taskflow/internal/repositories"
)

type TemplateService struct {
	templates *repository.TemplateRepository
	clk       clock.Clock
}

func NewTemplateService(templates *repository.TemplateRepository, clk clock.Clock) *TemplateService {
	return &TemplateService{templates: templates, clk: clk}
}

type CreateTemplateSpec struct {
	GroupID      string
	Title        string
	Description  string
	Priority     constants.Priority
	AssigneeIDs  []string
	ReviewerID   *string
	CreatorID    string
	Kind         constants.RecurrenceKind
	Weekday      int
	DayOfMonth   int
	TimeOfDay    string
	Timezone     string
	DurationDays int
}

func (spec *CreateTemplateSpec) rule() recurrence.Rule {
	return recurrence.Rule{
		Kind:       spec.Kind,
		Weekday:    spec.Weekday,
		DayOfMonth: spec.DayOfMonth,
		TimeOfDay:  spec.TimeOfDay,
		Timezone:   spec.Timezone,
	}
}

func (s *TemplateService) CreateTemplate(ctx context.Context, spec CreateTemplateSpec) (*model.RecurringTemplate, error) {
	if spec.GroupID == "" {
		return nil, apperrors.NewValidation("group id is required")
	}
	if spec.Title == "" {
		return nil, apperrors.NewValidation("title is required")
	}
	if len(spec.AssigneeIDs) == 0 {
		return nil, apperrors.NewValidation("at least one assignee (or the team sentinel) is required")
	}
	if spec.DurationDays <= 0 {
		return nil, apperrors.NewValidation("duration days must be positive")
	}
	if spec.Priority == "" {
		spec.Priority = constants.PriorityMedium
	}
	if !spec.Priority.Valid() {
		return nil, apperrors.NewValidation("priority must be low, medium or high")
	}

	now := s.clk.Now()
	firstRun, err := recurrence.FirstOccurrence(spec.rule(), now)
	if err != nil {
		return nil, err
	}

	tpl := &model.RecurringTemplate{
		ID:           uuid.NewString(),
		GroupID:      spec.GroupID,
		Title:        spec.Title,
		Description:  spec.Description,
		Priority:     spec.Priority,
		AssigneeIDs:  model.JoinIDs(spec.AssigneeIDs),
		ReviewerID:   spec.ReviewerID,
		CreatorID:    spec.CreatorID,
		Kind:         spec.Kind,
		Weekday:      spec.Weekday,
		DayOfMonth:   spec.DayOfMonth,
		TimeOfDay:    spec.TimeOfDay,
		Timezone:     spec.Timezone,
		DurationDays: spec.DurationDays,
		NextRunAt:    firstRun,
		Active:       true,
		Version:      1,
		CreatedAt:    now,
	}

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*model.RecurringTemplate, error) {
	return s.templates.FindByID(ctx, id)
}

// Toggle flips future firings on or off. Already-materialized tasks are
// never recalled. Reactivating also clears the failure streak.
func (s *TemplateService) Toggle(ctx context.Context, id string, active bool) (*model.RecurringTemplate, error) {
	tpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tpl.Active = active
	if active {
		tpl.FailCount = 0
	}
	if err := s.templates.Update(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id)
}
