package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	model "github.com/grouptask/taskflow/internal/models"
)

type KPIRepository struct {
	db *gorm.DB
}

func NewKPIRepository(db *gorm.DB) *KPIRepository {
	return &KPIRepository{db: db}
}

func (r *KPIRepository) WithTx(tx *gorm.DB) *KPIRepository {
	return &KPIRepository{db: tx}
}

func (r *KPIRepository) Create(ctx context.Context, rec *model.KPIRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Exists reports whether a (task, user) pair already has a record. The
// unique index is the hard guarantee; this check keeps the sweep from even
// attempting duplicates.
func (r *KPIRepository) Exists(ctx context.Context, taskID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.KPIRecord{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListByGroupWindow returns all records for a group inside the half-open
// window [start, end), oldest first.
func (r *KPIRepository) ListByGroupWindow(ctx context.Context, groupID string, start, end time.Time) ([]model.KPIRecord, error) {
	var recs []model.KPIRecord
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND recorded_at >= ? AND recorded_at < ?", groupID, start, end).
		Order("recorded_at asc").Find(&recs).Error
	return recs, err
}

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Add(ctx context.Context, groupID, userID string, at time.Time) error {
	member := &model.GroupMember{GroupID: groupID, UserID: userID, JoinedAt: at}
	return r.db.WithContext(ctx).Create(member).Error
}

// ListUserIDs returns the current members of a group, join order.
func (r *MemberRepository) ListUserIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("joined_at asc").
		Pluck("user_id", &ids).Error
	return ids, err
}
