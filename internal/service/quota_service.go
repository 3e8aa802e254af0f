package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
)

// PermissionResult is the quota engine's verdict. A denial is a normal value
// carrying its Reason; errors are reserved for infrastructure failures.
type PermissionResult struct {
	Allowed        bool                 `json:"can_download"`
	Reason         model.Reason         `json:"reason"`
	DownloadType   model.DownloadType   `json:"download_type"`
	MembershipType model.MembershipType `json:"membership_type,omitempty"`
	RemainingQuota int                  `json:"remaining_quota"`
}

// ConsumesQuota reports whether recording this download takes a unit of quota.
func (r *PermissionResult) ConsumesQuota() bool {
	return r.Allowed && r.DownloadType.Restricted() && r.MembershipType == model.MembershipMonthly
}

type DownloadRequest struct {
	UserID       uuid.UUID
	WallpaperID  int64
	DownloadType model.DownloadType
	IPAddress    string
	UserAgent    string
	DownloadURL  string
	FileSize     int64
}

type ConsumeResult struct {
	PermissionResult
	DownloadLogID int64 `json:"download_log_id,omitempty"`
	QuotaConsumed bool  `json:"quota_consumed"`
}

type MembershipInfo struct {
	UserID         uuid.UUID            `json:"user_id"`
	MembershipType model.MembershipType `json:"membership_type"`
	ExpiresAt      *time.Time           `json:"expires_at,omitempty"`
	DaysRemaining  *int                 `json:"days_remaining,omitempty"`
	DownloadQuota  int                  `json:"download_quota"`
	Unlimited      bool                 `json:"unlimited"`
	QuotaResetDate *time.Time           `json:"quota_reset_date,omitempty"`
	Downloads      *DownloadHistory     `json:"downloads"`
}

type QuotaService interface {
	CheckDownloadPermission(ctx context.Context, userID uuid.UUID, downloadType model.DownloadType) (*PermissionResult, error)
	ConsumeDownloadQuota(ctx context.Context, req DownloadRequest) (*ConsumeResult, error)
	MembershipInfo(ctx context.Context, userID uuid.UUID) (*MembershipInfo, error)
}

type quotaService struct {
	users      repository.UserRepository
	transactor repository.Transactor
	downloads  DownloadLogger
	publisher  event.Publisher
	policy     MembershipPolicy
	now        Clock
	logger     *zap.Logger
}

var _ QuotaService = (*quotaService)(nil)

func NewQuotaService(
	users repository.UserRepository,
	transactor repository.Transactor,
	downloads DownloadLogger,
	publisher event.Publisher,
	policy MembershipPolicy,
	now Clock,
	logger *zap.Logger,
) QuotaService {
	return &quotaService{
		users:      users,
		transactor: transactor,
		downloads:  downloads,
		publisher:  publisher,
		policy:     policy,
		now:        now,
		logger:     logger.Named("quota"),
	}
}

func (s *quotaService) CheckDownloadPermission(ctx context.Context, userID uuid.UUID, downloadType model.DownloadType) (*PermissionResult, error) {
	if _, ok := model.ParseDownloadType(string(downloadType)); !ok {
		return nil, ErrInvalidDownloadType
	}

	user, change, err := s.resolveUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return &PermissionResult{Reason: model.ReasonUserNotFound, DownloadType: downloadType}, nil
	}
	if err != nil {
		return nil, err
	}
	return evaluatePermission(user, downloadType, change), nil
}

// evaluatePermission applies the tier rules to a user whose membership has
// already been resolved at the current instant.
func evaluatePermission(user *model.User, downloadType model.DownloadType, change StateChange) *PermissionResult {
	result := &PermissionResult{
		DownloadType:   downloadType,
		MembershipType: user.MembershipType,
		RemainingQuota: user.DownloadQuota,
	}

	if !downloadType.Restricted() {
		result.Allowed = true
		result.Reason = model.ReasonUnrestricted
		return result
	}

	switch user.MembershipType {
	case model.MembershipPermanent:
		result.Allowed = true
		result.Reason = model.ReasonUnlimited
	case model.MembershipMonthly:
		if user.DownloadQuota > 0 {
			result.Allowed = true
			result.Reason = model.ReasonQuotaAvailable
		} else {
			result.Reason = model.ReasonQuotaExceeded
		}
	default:
		if change == StateExpired {
			result.Reason = model.ReasonMembershipExpired
		} else {
			result.Reason = model.ReasonNeedsMembership
		}
	}
	return result
}

// ConsumeDownloadQuota re-validates permission and records an allowed download.
// The guarded decrement and the log row commit together or not at all.
func (s *quotaService) ConsumeDownloadQuota(ctx context.Context, req DownloadRequest) (*ConsumeResult, error) {
	perm, err := s.CheckDownloadPermission(ctx, req.UserID, req.DownloadType)
	if err != nil {
		return nil, err
	}
	if !perm.Allowed {
		s.logger.Debug("download denied", zap.String("user_id", req.UserID.String()), zap.String("reason", string(perm.Reason)))
		return &ConsumeResult{PermissionResult: *perm}, nil
	}

	now := s.now()
	consume := perm.ConsumesQuota()
	entry := &model.DownloadLog{
		UserID:         req.UserID,
		WallpaperID:    req.WallpaperID,
		DownloadType:   req.DownloadType,
		MembershipType: perm.MembershipType,
		QuotaConsumed:  consume,
		DownloadDate:   day(now),
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		DownloadURL:    req.DownloadURL,
		FileSize:       req.FileSize,
	}

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if consume {
			ok, err := repos.Users.DecrementQuota(ctx, req.UserID, now)
			if err != nil {
				return fmt.Errorf("decrement quota: %w", err)
			}
			if !ok {
				return errQuotaExhausted
			}
		}
		return s.downloads.Record(ctx, repos.Downloads, entry)
	})
	if errors.Is(err, errQuotaExhausted) {
		perm.Allowed = false
		perm.Reason = model.ReasonQuotaExceeded
		perm.RemainingQuota = 0
		return &ConsumeResult{PermissionResult: *perm}, nil
	}
	if err != nil {
		return nil, err
	}

	s.downloads.AfterCommit(ctx, entry)

	result := &ConsumeResult{
		PermissionResult: *perm,
		DownloadLogID:    entry.ID,
		QuotaConsumed:    consume,
	}
	if consume {
		user, err := s.users.GetByID(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("reload user: %w", err)
		}
		result.RemainingQuota = user.DownloadQuota
	}
	return result, nil
}

func (s *quotaService) MembershipInfo(ctx context.Context, userID uuid.UUID) (*MembershipInfo, error) {
	user, _, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.downloads.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := &MembershipInfo{
		UserID:         user.ID,
		MembershipType: user.MembershipType,
		ExpiresAt:      user.MembershipExpiresAt,
		DownloadQuota:  user.DownloadQuota,
		Unlimited:      user.Unlimited(),
		QuotaResetDate: user.QuotaResetDate,
		Downloads:      history,
	}
	if user.MembershipExpiresAt != nil {
		days := daysUntil(s.now(), *user.MembershipExpiresAt)
		info.DaysRemaining = &days
	}
	return info, nil
}

// resolveUser loads the user and brings its membership up to date.
func (s *quotaService) resolveUser(ctx context.Context, userID uuid.UUID) (*model.User, StateChange, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, StateUnchanged, ErrUserNotFound
	}
	if err != nil {
		return nil, StateUnchanged, fmt.Errorf("load user: %w", err)
	}

	change, applied, err := syncMembershipState(ctx, s.users, user, s.now(), s.policy)
	if err != nil {
		return nil, StateUnchanged, err
	}
	if change == StateExpired && applied {
		s.logger.Info("membership expired on access", zap.String("user_id", userID.String()))
		if err := event.Emit(ctx, s.publisher, event.TypeMembershipExpired, event.MembershipExpired{UserID: userID, Source: "lazy"}); err != nil {
			s.logger.Warn("publish expiry event", zap.Error(err))
		}
	}
	return user, change, nil
}

// daysUntil rounds the remaining time up to whole days, never below zero.
func daysUntil(now, t time.Time) int {
	remaining := t.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
}
