package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
)

const dailyCounterTTL = 48 * time.Hour

// DownloadHistory summarises a user's download log.
type DownloadHistory struct {
	Today           int64 `json:"today"`
	Total           int64 `json:"total"`
	RestrictedToday int64 `json:"restricted_today"`
	RestrictedTotal int64 `json:"restricted_total"`
}

// DownloadLogger appends download rows and keeps the derived counters.
// The log is never consulted for quota decisions.
type DownloadLogger interface {
	// Record appends entry using logs, which is bound to the caller's transaction.
	Record(ctx context.Context, logs repository.DownloadLogRepository, entry *model.DownloadLog) error
	// AfterCommit runs the best-effort side effects of a committed download.
	AfterCommit(ctx context.Context, entry *model.DownloadLog)
	TodayCount(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID) (*DownloadHistory, error)
}

type downloadLogger struct {
	logs      repository.DownloadLogRepository
	state     repository.StateStore
	publisher event.Publisher
	now       Clock
	logger    *zap.Logger
}

var _ DownloadLogger = (*downloadLogger)(nil)

func NewDownloadLogger(
	logs repository.DownloadLogRepository,
	state repository.StateStore,
	publisher event.Publisher,
	now Clock,
	logger *zap.Logger,
) DownloadLogger {
	return &downloadLogger{
		logs:      logs,
		state:     state,
		publisher: publisher,
		now:       now,
		logger:    logger.Named("download_logger"),
	}
}

func (l *downloadLogger) Record(ctx context.Context, logs repository.DownloadLogRepository, entry *model.DownloadLog) error {
	if entry.DownloadDate.IsZero() {
		entry.DownloadDate = day(l.now())
	}
	if err := logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("append download log: %w", err)
	}
	return nil
}

func (l *downloadLogger) AfterCommit(ctx context.Context, entry *model.DownloadLog) {
	l.bumpDailyCounter(ctx, entry.UserID, entry.DownloadDate)

	err := event.Emit(ctx, l.publisher, event.TypeDownloadRecorded, event.DownloadRecorded{
		UserID:         entry.UserID,
		WallpaperID:    entry.WallpaperID,
		DownloadType:   string(entry.DownloadType),
		MembershipType: string(entry.MembershipType),
		QuotaConsumed:  entry.QuotaConsumed,
		DownloadLogID:  entry.ID,
	})
	if err != nil {
		l.logger.Warn("publish download event", zap.Int64("download_log_id", entry.ID), zap.Error(err))
	}
}

// bumpDailyCounter increments the day's counter. A fresh counter (missing
// after a restart or eviction) is reseeded from the log table, which already
// holds the committed row.
func (l *downloadLogger) bumpDailyCounter(ctx context.Context, userID uuid.UUID, date time.Time) {
	key := dailyCounterKey(userID, date)
	n, err := l.state.Incr(ctx, key, dailyCounterTTL)
	if err != nil {
		l.logger.Warn("bump daily download counter", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if n != 1 {
		return
	}

	logged, err := l.logs.CountOnDate(ctx, userID, date)
	if err != nil {
		l.logger.Warn("reseed daily download counter", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if logged <= n {
		return
	}
	if err := l.state.Set(ctx, key, []byte(strconv.FormatInt(logged, 10)), dailyCounterTTL); err != nil {
		l.logger.Warn("reseed daily download counter", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// cachedTodayCount returns the state-store counter for today, if any.
func (l *downloadLogger) cachedTodayCount(ctx context.Context, userID uuid.UUID, today time.Time) (int64, bool) {
	raw, err := l.state.Get(ctx, dailyCounterKey(userID, today))
	if err != nil {
		l.logger.Warn("read daily download counter", zap.String("user_id", userID.String()), zap.Error(err))
		return 0, false
	}
	if raw == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		l.logger.Warn("malformed daily download counter", zap.String("user_id", userID.String()), zap.Error(err))
		return 0, false
	}
	return n, true
}

// TodayCount prefers the state-store counter and falls back to the log table
// when the counter is missing.
func (l *downloadLogger) TodayCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	today := day(l.now())
	if n, ok := l.cachedTodayCount(ctx, userID, today); ok {
		return n, nil
	}

	n, err := l.logs.CountOnDate(ctx, userID, today)
	if err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return n, nil
}

// History takes today's count from the counter when present and everything
// else from the log table.
func (l *downloadLogger) History(ctx context.Context, userID uuid.UUID) (*DownloadHistory, error) {
	today := day(l.now())
	stats, err := l.logs.StatsForUser(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("download stats: %w", err)
	}
	history := &DownloadHistory{
		Today:           stats.Today,
		Total:           stats.Total,
		RestrictedToday: stats.RestrictedToday,
		RestrictedTotal: stats.RestrictedTotal,
	}
	if n, ok := l.cachedTodayCount(ctx, userID, today); ok {
		history.Today = n
	}
	return history, nil
}

func dailyCounterKey(userID uuid.UUID, date time.Time) string {
	return "vip:downloads:" + userID.String() + ":" + date.Format("20060102")
}

// day truncates t to midnight UTC.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
