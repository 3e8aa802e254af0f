package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/model"
)

type pgUserRepository struct {
	db *gorm.DB
}

func NewPGUserRepository(db *gorm.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *pgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *pgUserRepository) ExpireMembership(ctx context.Context, id uuid.UUID, now time.Time, freeQuota int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND membership_type = ?", id, model.MembershipMonthly).
		Where("membership_expires_at IS NULL OR membership_expires_at <= ?", now).
		Updates(map[string]any{
			"membership_type":       model.MembershipFree,
			"download_quota":        freeQuota,
			"membership_expires_at": nil,
			"quota_reset_date":      nil,
		})
	return result.RowsAffected == 1, result.Error
}

func (r *pgUserRepository) RefillQuota(ctx context.Context, id uuid.UUID, expectedReset time.Time, quota int, nextReset time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND membership_type = ? AND quota_reset_date = ?", id, model.MembershipMonthly, expectedReset).
		Updates(map[string]any{
			"download_quota":   quota,
			"quota_reset_date": nextReset,
		})
	return result.RowsAffected == 1, result.Error
}

func (r *pgUserRepository) DecrementQuota(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND membership_type = ? AND download_quota > 0 AND membership_expires_at > ?",
			id, model.MembershipMonthly, now).
		UpdateColumn("download_quota", gorm.Expr("download_quota - 1"))
	return result.RowsAffected == 1, result.Error
}

func (r *pgUserRepository) ApplyGrant(ctx context.Context, id uuid.UUID, state model.MembershipState) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"membership_type":       state.Type,
			"membership_expires_at": state.ExpiresAt,
			"download_quota":        state.Quota,
			"quota_reset_date":      state.ResetDate,
		})
	return result.RowsAffected == 1, result.Error
}

func (r *pgUserRepository) ListExpiredMonthly(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("membership_type = ? AND id > ?", model.MembershipMonthly, afterID).
		Where("membership_expires_at IS NULL OR membership_expires_at <= ?", now).
		Order("id").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *pgUserRepository) ListDueQuotaResets(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("membership_type = ? AND id > ?", model.MembershipMonthly, afterID).
		Where("quota_reset_date <= ? AND membership_expires_at > ?", now, now).
		Order("id").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *pgUserRepository) CountByMembershipType(ctx context.Context) (map[model.MembershipType]int64, error) {
	var rows []struct {
		MembershipType model.MembershipType
		Count          int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("membership_type, COUNT(*) AS count").
		Group("membership_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.MembershipType]int64, len(rows))
	for _, row := range rows {
		counts[row.MembershipType] = row.Count
	}
	return counts, nil
}
