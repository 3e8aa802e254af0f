package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wallpaper/vipcenter/internal/model"
)

type DownloadStats struct {
	Today           int64
	Total           int64
	RestrictedToday int64
	RestrictedTotal int64
}

type DownloadLogRepository interface {
	Create(ctx context.Context, entry *model.DownloadLog) error
	CountOnDate(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error)
	StatsForUser(ctx context.Context, userID uuid.UUID, day time.Time) (*DownloadStats, error)
}
