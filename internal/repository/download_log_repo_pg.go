package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/model"
)

type pgDownloadLogRepository struct {
	db *gorm.DB
}

func NewPGDownloadLogRepository(db *gorm.DB) DownloadLogRepository {
	return &pgDownloadLogRepository{db: db}
}

func (r *pgDownloadLogRepository) Create(ctx context.Context, entry *model.DownloadLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *pgDownloadLogRepository) CountOnDate(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.DownloadLog{}).
		Where("user_id = ? AND download_date = ?", userID, day).
		Count(&count).Error
	return count, err
}

// StatsForUser aggregates today's and all-time downloads in one scan.
// Restricted counts only rows that consumed quota.
func (r *pgDownloadLogRepository) StatsForUser(ctx context.Context, userID uuid.UUID, day time.Time) (*DownloadStats, error) {
	var stats DownloadStats
	err := r.db.WithContext(ctx).
		Model(&model.DownloadLog{}).
		Select(
			"COALESCE(SUM(CASE WHEN download_date = ? THEN 1 ELSE 0 END), 0) AS today, "+
				"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN download_date = ? AND quota_consumed THEN 1 ELSE 0 END), 0) AS restricted_today, "+
				"COALESCE(SUM(CASE WHEN quota_consumed THEN 1 ELSE 0 END), 0) AS restricted_total",
			day, day,
		).
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
