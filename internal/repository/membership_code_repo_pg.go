package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/model"
)

type pgMembershipCodeRepository struct {
	db *gorm.DB
}

func NewPGMembershipCodeRepository(db *gorm.DB) MembershipCodeRepository {
	return &pgMembershipCodeRepository{db: db}
}

func (r *pgMembershipCodeRepository) Create(ctx context.Context, code *model.MembershipCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *pgMembershipCodeRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.MembershipCode{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *pgMembershipCodeRepository) GetActiveByCode(ctx context.Context, code string) (*model.MembershipCode, error) {
	var mc model.MembershipCode
	err := r.db.WithContext(ctx).
		Where("code = ? AND status = ?", code, model.CodeStatusActive).
		First(&mc).Error
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

func (r *pgMembershipCodeRepository) Claim(ctx context.Context, id uuid.UUID, userID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.MembershipCode{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, model.CodeStatusActive, now).
		Updates(map[string]any{
			"status":          model.CodeStatusUsed,
			"used_by_user_id": userID,
			"used_at":         now,
		})
	return result.RowsAffected == 1, result.Error
}

func (r *pgMembershipCodeRepository) List(ctx context.Context, filter CodeFilter) ([]model.MembershipCode, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.MembershipCode{})

	switch filter.Status {
	case "unused":
		query = query.Where("status = ? AND expires_at > ?", model.CodeStatusActive, filter.Now)
	case "used":
		query = query.Where("status = ?", model.CodeStatusUsed)
	case "expired":
		query = query.Where("status = ? OR (status = ? AND expires_at <= ?)",
			model.CodeStatusExpired, model.CodeStatusActive, filter.Now)
	}
	if filter.MembershipType != "" {
		query = query.Where("membership_type = ?", filter.MembershipType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var codes []model.MembershipCode
	err := query.
		Order("created_at DESC").
		Order("id").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&codes).Error
	if err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

func (r *pgMembershipCodeRepository) CountByTypeStatus(ctx context.Context) ([]CodeCount, error) {
	var counts []CodeCount
	err := r.db.WithContext(ctx).
		Model(&model.MembershipCode{}).
		Select("membership_type, status, COUNT(*) AS count").
		Group("membership_type, status").
		Order("membership_type, status").
		Scan(&counts).Error
	return counts, err
}

func (r *pgMembershipCodeRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.MembershipCode{}).
		Where("status = ? AND expires_at <= ?", model.CodeStatusActive, now).
		Update("status", model.CodeStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *pgMembershipCodeRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.MembershipCode{})
	return result.RowsAffected, result.Error
}
