package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grouptask/taskflow/internal/clock"
	"github.com/grouptask/taskflow/internal/constants"
	apperrors "github.com/grouptask/taskflow/internal/errors"
	model "github.com/grouptask/taskflow/internal/models"
	repository "github.com/grouptask/taskflow/internal/repositories"
)

// transitionTable is the only authority on which statuses an event may fire
// from. An event from any status not listed fails with the invalid
// transition error; there is no fallback path.
var transitionTable = map[string][]constants.TaskStatus{
	constants.ActionSubmit: {
		constants.StatusPending, constants.StatusInProgress, constants.StatusOverdue,
	},
	constants.ActionRequestReview: {constants.StatusSubmitted},
	constants.ActionApproveReview: {constants.StatusSubmitted},
	constants.ActionRejectReview:  {constants.StatusSubmitted},
	constants.ActionApprove:       {constants.StatusReviewed, constants.StatusSubmitted},
	constants.ActionMarkOverdue: {
		constants.StatusPending, constants.StatusInProgress,
	},
}

func ensureAllowed(event string, status constants.TaskStatus) error {
	for _, allowed := range transitionTable[event] {
		if status == allowed {
			return nil
		}
	}
	return apperrors.NewInvalidTransition(event, string(status))
}

type TaskService struct {
	db     *gorm.DB
	tasks  *repository.TaskRepository
	kpis   *repository.KPIRepository
	scorer *KPIService
	clk    clock.Clock
}

func NewTaskService(
	db *gorm.DB,
	tasks *repository.TaskRepository,
	kpis *repository.KPIRepository,
	scorer *KPIService,
	clk clock.Clock,
) *TaskService {
	return &TaskService{
		db:     db,
		tasks:  tasks,
		kpis:   kpis,
		scorer: scorer,
		clk:    clk,
	}
}

type CreateTaskSpec struct {
	GroupID           string
	Title             string
	Description       string
	Priority          constants.Priority
	Tags              []string
	AssigneeIDs       []string
	CreatorID         string
	ReviewerID        *string
	TemplateID        *string
	StartAt           *time.Time
	DueAt             time.Time
	RequireAttachment bool
}

func (spec *CreateTaskSpec) validate() error {
	if spec.GroupID == "" {
		return apperrors.NewValidation("group id is required")
	}
	if spec.Title == "" {
		return apperrors.NewValidation("title is required")
	}
	if len(spec.AssigneeIDs) == 0 {
		return apperrors.NewValidation("at least one assignee is required")
	}
	if spec.DueAt.IsZero() {
		return apperrors.NewValidation("due time is required")
	}
	if spec.Priority == "" {
		spec.Priority = constants.PriorityMedium
	}
	if !spec.Priority.Valid() {
		return apperrors.NewValidation("priority must be low, medium or high")
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, spec CreateTaskSpec) (*model.Task, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	task := &model.Task{
		ID:                uuid.NewString(),
		GroupID:           spec.GroupID,
		Title:             spec.Title,
		Description:       spec.Description,
		Priority:          spec.Priority,
		Tags:              model.JoinIDs(spec.Tags),
		AssigneeIDs:       model.JoinIDs(spec.AssigneeIDs),
		CreatorID:         spec.CreatorID,
		TemplateID:        spec.TemplateID,
		Status:            constants.StatusPending,
		RequireAttachment: spec.RequireAttachment,
		ReviewerID:        spec.ReviewerID,
		ReviewStatus:      constants.ReviewNotRequested,
		ApprovalStatus:    constants.ApprovalNotRequested,
		StartAt:           spec.StartAt,
		DueAt:             spec.DueAt,
		Version:           1,
		CreatedAt:         now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)
		if err := repo.Create(ctx, task); err != nil {
			return err
		}
		return repo.AppendHistory(ctx, &model.TaskHistory{
			TaskID:  task.ID,
			Seq:     1,
			Action:  constants.ActionCreate,
			ActorID: spec.CreatorID,
			At:      now,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.tasks.FindByID(ctx, id)
}

func (s *TaskService) ListHistory(ctx context.Context, taskID string) ([]model.TaskHistory, error) {
	if _, err := s.tasks.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.tasks.ListHistory(ctx, taskID)
}

func (s *TaskService) ListSubmissions(ctx context.Context, taskID string) ([]model.TaskSubmission, error) {
	if _, err := s.tasks.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.tasks.ListSubmissions(ctx, taskID)
}

// DeleteTask hard-deletes a task; its KPI records cascade away with it.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}

type SubmitPayload struct {
	Comment  string
	FileRefs []string
}

// Submit moves the task to submitted and appends to the submission log.
// Resubmission after rejection lands here again; the log is append-only.
func (s *TaskService) Submit(ctx context.Context, taskID, actorID string, payload SubmitPayload) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureAllowed(constants.ActionSubmit, task.Status); err != nil {
		return nil, err
	}
	if task.RequireAttachment && len(payload.FileRefs) == 0 {
		return nil, apperrors.NewValidation("this task requires at least one attachment")
	}

	now := s.clk.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)

		seq, err := repo.CountSubmissions(ctx, task.ID)
		if err != nil {
			return err
		}
		if err := repo.AppendSubmission(ctx, &model.TaskSubmission{
			TaskID:      task.ID,
			Seq:         seq + 1,
			ActorID:     actorID,
			Comment:     payload.Comment,
			FileRefs:    model.JoinIDs(payload.FileRefs),
			SubmittedAt: now,
		}); err != nil {
			return err
		}

		task.Status = constants.StatusSubmitted
		task.ReviewStatus = constants.ReviewNotRequested
		if task.SubmittedAt == nil {
			task.SubmittedAt = &now
		}

		return s.applyTransition(ctx, repo, task, constants.ActionSubmit, actorID, "", now)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// RequestReview flags the submission for the configured reviewer. The
// status stays submitted; only the review sub-state advances.
func (s *TaskService) RequestReview(ctx context.Context, taskID, actorID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureAllowed(constants.ActionRequestReview, task.Status); err != nil {
		return nil, err
	}
	if !task.ReviewRequired() {
		return nil, apperrors.NewValidation("task has no reviewer configured")
	}

	now := s.clk.Now()
	task.ReviewStatus = constants.ReviewPending
	task.ReviewRequestedAt = &now

	if err := s.transitionTx(ctx, task, constants.ActionRequestReview, actorID, "", now); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) ApproveReview(ctx context.Context, taskID, actorID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureAllowed(constants.ActionApproveReview, task.Status); err != nil {
		return nil, err
	}
	if task.ReviewStatus != constants.ReviewPending {
		return nil, apperrors.NewInvalidTransition(constants.ActionApproveReview, string(task.ReviewStatus))
	}

	now := s.clk.Now()
	task.Status = constants.StatusReviewed
	task.ReviewStatus = constants.ReviewApproved
	task.ReviewResolvedAt = &now
	if task.ReviewedAt == nil {
		task.ReviewedAt = &now
	}

	if err := s.transitionTx(ctx, task, constants.ActionApproveReview, actorID, "", now); err != nil {
		return nil, err
	}
	return task, nil
}

// RejectReview sends the task back to in_progress with a reviewer-supplied
// new due time.
func (s *TaskService) RejectReview(ctx context.Context, taskID, actorID string, newDue time.Time, note string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureAllowed(constants.ActionRejectReview, task.Status); err != nil {
		return nil, err
	}
	if task.ReviewStatus != constants.ReviewPending {
		return nil, apperrors.NewInvalidTransition(constants.ActionRejectReview, string(task.ReviewStatus))
	}
	if newDue.IsZero() {
		return nil, apperrors.NewValidation("a new due time is required when rejecting a review")
	}

	now := s.clk.Now()
	task.Status = constants.StatusInProgress
	task.ReviewStatus = constants.ReviewRejected
	task.ReviewResolvedAt = &now
	task.DueAt = newDue

	if err := s.transitionTx(ctx, task, constants.ActionRejectReview, actorID, note, now); err != nil {
		return nil, err
	}
	return task, nil
}

// ApproveCompletion is the terminal happy path: marks the task completed and
// records one KPI outcome per assignee in the same transaction, so the score
// and the transition stand or fall together.
func (s *TaskService) ApproveCompletion(ctx context.Context, taskID, actorID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureAllowed(constants.ActionApprove, task.Status); err != nil {
		return nil, err
	}
	if task.Status == constants.StatusSubmitted && task.ReviewRequired() {
		return nil, apperrors.NewInvalidTransition(constants.ActionApprove, string(task.Status))
	}

	now := s.clk.Now()
	task.Status = constants.StatusCompleted
	task.ApprovalStatus = constants.ApprovalApproved
	if task.ApprovedAt == nil {
		task.ApprovedAt = &now
	}
	if task.CompletedAt == nil {
		task.CompletedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.tasks.WithTx(tx)
		kpiRepo := s.kpis.WithTx(tx)

		if err := s.applyTransition(ctx, repo, task, constants.ActionApprove, actorID, "", now); err != nil {
			return err
		}

		for _, rec := range s.scorer.RecordsForCompletion(task, now) {
			exists, err := kpiRepo.Exists(ctx, rec.TaskID, rec.UserID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := kpiRepo.Create(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// MarkOverdue is time-triggered only; the scheduler sweep calls it once the
// due time passes without submission.
func (s *TaskService) MarkOverdue(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := ensureAllowed(constants.ActionMarkOverdue, task.Status); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	task.Status = constants.StatusOverdue
	task.WasOverdue = true

	if err := s.transitionTx(ctx, task, constants.ActionMarkOverdue, constants.SystemActor, "", now); err != nil {
		return nil, err
	}
	return task, nil
}

// Cancel stops all further workflow transitions. Calling it on an already
// cancelled task is a no-op; already-recorded history and KPI stay.
func (s *TaskService) Cancel(ctx context.Context, taskID, actorID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == constants.StatusCancelled {
		return task, nil
	}
	if task.Status.Terminal() {
		return nil, apperrors.NewInvalidTransition(constants.ActionCancel, string(task.Status))
	}

	now := s.clk.Now()
	task.Status = constants.StatusCancelled

	if err := s.transitionTx(ctx, task, constants.ActionCancel, actorID, "", now); err != nil {
		return nil, err
	}
	return task, nil
}

// transitionTx runs a single mutate-and-log transition in its own
// transaction.
func (s *TaskService) transitionTx(ctx context.Context, task *model.Task, action, actorID, note string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyTransition(ctx, s.tasks.WithTx(tx), task, action, actorID, note, at)
	})
}

// applyTransition persists the mutated task under the optimistic version
// guard and appends the audit row. Every transition passes through here;
// the history append is never skipped.
func (s *TaskService) applyTransition(ctx context.Context, repo *repository.TaskRepository, task *model.Task, action, actorID, note string, at time.Time) error {
	if err := repo.Update(ctx, task); err != nil {
		return err
	}

	seq, err := repo.CountHistory(ctx, task.ID)
	if err != nil {
		return err
	}
	return repo.AppendHistory(ctx, &model.TaskHistory{
		TaskID:  task.ID,
		Seq:     seq + 1,
		Action:  action,
		ActorID: actorID,
		Note:    note,
		At:      at,
	})
}
