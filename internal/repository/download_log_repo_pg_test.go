package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallpaper/vipcenter/internal/dbtest"
	"wallpaper/vipcenter/internal/model"
)

func TestDownloadLogRepository_Stats(t *testing.T) {
	repo := NewPGDownloadLogRepository(dbtest.New(t))
	ctx := context.Background()

	userID := uuid.New()
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	entries := []model.DownloadLog{
		{UserID: userID, WallpaperID: 1, DownloadType: model.DownloadHDCombo, MembershipType: model.MembershipMonthly, QuotaConsumed: true, DownloadDate: today},
		{UserID: userID, WallpaperID: 2, DownloadType: model.DownloadCover, MembershipType: model.MembershipMonthly, DownloadDate: today},
		{UserID: userID, WallpaperID: 3, DownloadType: model.DownloadAvatar, MembershipType: model.MembershipMonthly, QuotaConsumed: true, DownloadDate: yesterday},
		{UserID: uuid.New(), WallpaperID: 1, DownloadType: model.DownloadCover, MembershipType: model.MembershipFree, DownloadDate: today},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
		assert.NotZero(t, entries[i].ID)
	}

	count, err := repo.CountOnDate(ctx, userID, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	stats, err := repo.StatsForUser(ctx, userID, today)
	require.NoError(t, err)
	assert.Equal(t, DownloadStats{Today: 2, Total: 3, RestrictedToday: 1, RestrictedTotal: 2}, *stats)

	empty, err := repo.StatsForUser(ctx, uuid.New(), today)
	require.NoError(t, err)
	assert.Equal(t, DownloadStats{}, *empty)
}
