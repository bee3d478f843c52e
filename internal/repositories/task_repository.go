package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/grouptask/taskflow/internal/constants"
	apperrors "github.com/grouptask/taskflow/internal/errors"
	model "github.com/grouptask/taskflow/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx rebinds the repository to a transaction handle so a service can
// group task, history and KPI writes atomically.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListByGroup(ctx context.Context, groupID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at desc").Find(&tasks).Error
	return tasks, err
}

// ListDueUnfinished returns pending or in-progress tasks whose due time has
// passed, for the overdue sweep.
func (r *TaskRepository) ListDueUnfinished(ctx context.Context, before time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("status IN ? AND due_at <= ?",
			[]constants.TaskStatus{constants.StatusPending, constants.StatusInProgress}, before).
		Order("due_at asc").Find(&tasks).Error
	return tasks, err
}

// ListOverdueBefore returns tasks sitting in overdue whose due time passed
// before the cutoff, i.e. candidates for a terminal overdue KPI record.
func (r *TaskRepository) ListOverdueBefore(ctx context.Context, cutoff time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", constants.StatusOverdue, cutoff).
		Order("due_at asc").Find(&tasks).Error
	return tasks, err
}

// Update persists all mutable columns guarded by the optimistic version
// check. A stale version fails with the conflict error; the caller must
// re-read and retry.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND version = ?", task.ID, task.Version).
		Updates(map[string]interface{}{
			"title":               task.Title,
			"description":         task.Description,
			"priority":            task.Priority,
			"tags":                task.Tags,
			"assignee_ids":        task.AssigneeIDs,
			"status":              task.Status,
			"reviewer_id":         task.ReviewerID,
			"review_status":       task.ReviewStatus,
			"review_requested_at": task.ReviewRequestedAt,
			"review_resolved_at":  task.ReviewResolvedAt,
			"approval_status":     task.ApprovalStatus,
			"was_overdue":         task.WasOverdue,
			"due_at":              task.DueAt,
			"submitted_at":        task.SubmittedAt,
			"reviewed_at":         task.ReviewedAt,
			"approved_at":         task.ApprovedAt,
			"completed_at":        task.CompletedAt,
			"version":             gorm.Expr("version + 1"),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConflict
	}

	task.Version++
	return nil
}

// Delete hard-deletes a task; KPI records cascade with it.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) AppendHistory(ctx context.Context, entry *model.TaskHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *TaskRepository) ListHistory(ctx context.Context, taskID string) ([]model.TaskHistory, error) {
	var entries []model.TaskHistory
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("seq asc").Find(&entries).Error
	return entries, err
}

func (r *TaskRepository) CountHistory(ctx context.Context, taskID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TaskHistory{}).
		Where("task_id = ?", taskID).Count(&count).Error
	return int(count), err
}

func (r *TaskRepository) AppendSubmission(ctx context.Context, sub *model.TaskSubmission) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *TaskRepository) ListSubmissions(ctx context.Context, taskID string) ([]model.TaskSubmission, error) {
	var subs []model.TaskSubmission
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("seq asc").Find(&subs).Error
	return subs, err
}

func (r *TaskRepository) CountSubmissions(ctx context.Context, taskID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TaskSubmission{}).
		Where("task_id = ?", taskID).Count(&count).Error
	return int(count), err
}
