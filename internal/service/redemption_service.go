package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
	"wallpaper/vipcenter/pkg/crypto"
)

type RedeemResult struct {
	Success       bool                 `json:"success"`
	Reason        model.Reason         `json:"reason"`
	Message       string               `json:"message"`
	GrantedType   model.MembershipType `json:"granted_type,omitempty"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	DownloadQuota int                  `json:"download_quota"`
}

func redeemFailure(reason model.Reason) *RedeemResult {
	return &RedeemResult{Reason: reason, Message: reason.Message()}
}

type RedemptionService interface {
	// Redeem claims code for userID and upgrades the user in one transaction.
	Redeem(ctx context.Context, code string, userID uuid.UUID) (*RedeemResult, error)
}

type redemptionService struct {
	codes      repository.MembershipCodeRepository
	transactor repository.Transactor
	state      repository.StateStore
	publisher  event.Publisher
	policy     MembershipPolicy
	now        Clock
	logger     *zap.Logger
}

var _ RedemptionService = (*redemptionService)(nil)

func NewRedemptionService(
	codes repository.MembershipCodeRepository,
	transactor repository.Transactor,
	state repository.StateStore,
	publisher event.Publisher,
	policy MembershipPolicy,
	now Clock,
	logger *zap.Logger,
) RedemptionService {
	return &redemptionService{
		codes:      codes,
		transactor: transactor,
		state:      state,
		publisher:  publisher,
		policy:     policy,
		now:        now,
		logger:     logger.Named("redemption"),
	}
}

var errAlreadyPermanent = errors.New("user already permanent")

func (s *redemptionService) Redeem(ctx context.Context, code string, userID uuid.UUID) (*RedeemResult, error) {
	if !crypto.IsMembershipCode(code) {
		return nil, ErrInvalidCodeFormat
	}
	if s.throttled(ctx, userID) {
		return redeemFailure(model.ReasonTooManyAttempts), nil
	}

	mc, err := s.codes.GetActiveByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.recordFailure(ctx, userID)
		return redeemFailure(model.ReasonCodeNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup code: %w", err)
	}

	now := s.now()
	if mc.Expired(now) {
		s.recordFailure(ctx, userID)
		return redeemFailure(model.ReasonCodeExpired), nil
	}

	var grant model.MembershipState
	switch mc.MembershipType {
	case model.MembershipMonthly:
		grant = monthlyGrant(now, s.policy)
	case model.MembershipPermanent:
		grant = permanentGrant()
	default:
		return nil, fmt.Errorf("code %s carries membership type %q", mc.ID, mc.MembershipType)
	}

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		user, err := repos.Users.GetByID(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user.MembershipType == model.MembershipPermanent && mc.MembershipType == model.MembershipMonthly {
			return errAlreadyPermanent
		}

		claimed, err := repos.Codes.Claim(ctx, mc.ID, userID, now)
		if err != nil {
			return fmt.Errorf("claim code: %w", err)
		}
		if !claimed {
			return errCodeTaken
		}

		applied, err := repos.Users.ApplyGrant(ctx, userID, grant)
		if err != nil {
			return fmt.Errorf("apply grant: %w", err)
		}
		if !applied {
			return ErrUserNotFound
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrUserNotFound):
		return redeemFailure(model.ReasonUserNotFound), nil
	case errors.Is(err, errAlreadyPermanent):
		return redeemFailure(model.ReasonAlreadyPermanent), nil
	case errors.Is(err, errCodeTaken):
		s.recordFailure(ctx, userID)
		return redeemFailure(model.ReasonCodeNotFound), nil
	case err != nil:
		return nil, err
	}

	s.logger.Info("membership code redeemed",
		zap.String("user_id", userID.String()),
		zap.String("code_id", mc.ID.String()),
		zap.String("batch_id", mc.BatchID),
		zap.String("membership_type", string(grant.Type)),
	)
	if err := s.state.Delete(ctx, redeemFailureKey(userID)); err != nil {
		s.logger.Warn("reset redeem failure counter", zap.Error(err))
	}
	err = event.Emit(ctx, s.publisher, event.TypeMembershipRedeemed, event.MembershipRedeemed{
		UserID:         userID,
		CodeID:         mc.ID,
		BatchID:        mc.BatchID,
		MembershipType: string(grant.Type),
		ExpiresAt:      grant.ExpiresAt,
	})
	if err != nil {
		s.logger.Warn("publish redemption event", zap.Error(err))
	}

	return &RedeemResult{
		Success:       true,
		Reason:        model.ReasonRedeemed,
		Message:       model.ReasonRedeemed.Message(),
		GrantedType:   grant.Type,
		ExpiresAt:     grant.ExpiresAt,
		DownloadQuota: grant.Quota,
	}, nil
}

// throttled reports whether userID has used up its failed attempts for the
// current window. A state-store outage never blocks redemption.
func (s *redemptionService) throttled(ctx context.Context, userID uuid.UUID) bool {
	if s.policy.RedeemMaxFailures <= 0 {
		return false
	}
	raw, err := s.state.Get(ctx, redeemFailureKey(userID))
	if err != nil {
		s.logger.Warn("read redeem failure counter", zap.Error(err))
		return false
	}
	if raw == nil {
		return false
	}
	n, err := strconv.Atoi(string(raw))
	return err == nil && n >= s.policy.RedeemMaxFailures
}

func (s *redemptionService) recordFailure(ctx context.Context, userID uuid.UUID) {
	if s.policy.RedeemMaxFailures <= 0 {
		return
	}
	if _, err := s.state.Incr(ctx, redeemFailureKey(userID), s.policy.RedeemFailureWindow); err != nil {
		s.logger.Warn("bump redeem failure counter", zap.Error(err))
	}
}

func redeemFailureKey(userID uuid.UUID) string {
	return "vip:redeem:failures:" + userID.String()
}
