package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/grouptask/taskflow/internal/errors"
	model "github.com/grouptask/taskflow/internal/models"
)

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) WithTx(tx *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: tx}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *model.RecurringTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*model.RecurringTemplate, error) {
	var tpl model.RecurringTemplate
	err := r.db.WithContext(ctx).First(&tpl, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

// ListDue returns active templates whose next run is at or before now,
// oldest first so a backlog drains in occurrence order.
func (r *TemplateRepository) ListDue(ctx context.Context, now time.Time) ([]model.RecurringTemplate, error) {
	var tpls []model.RecurringTemplate
	err := r.db.WithContext(ctx).
		Where("active = ? AND next_run_at <= ?", true, now).
		Order("next_run_at asc").Find(&tpls).Error
	return tpls, err
}

// Update persists scheduling state under the optimistic version guard. Two
// concurrent ticks advancing the same template cannot both win.
func (r *TemplateRepository) Update(ctx context.Context, tpl *model.RecurringTemplate) error {
	res := r.db.WithContext(ctx).Model(&model.RecurringTemplate{}).
		Where("id = ? AND version = ?", tpl.ID, tpl.Version).
		Updates(map[string]interface{}{
			"title":           tpl.Title,
			"description":     tpl.Description,
			"priority":        tpl.Priority,
			"assignee_ids":    tpl.AssigneeIDs,
			"reviewer_id":     tpl.ReviewerID,
			"next_run_at":     tpl.NextRunAt,
			"last_run_at":     tpl.LastRunAt,
			"total_instances": tpl.TotalInstances,
			"active":          tpl.Active,
			"fail_count":      tpl.FailCount,
			"version":         gorm.Expr("version + 1"),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConflict
	}

	tpl.Version++
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.RecurringTemplate{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTemplateNotFound
	}
	return nil
}
