package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
	"wallpaper/vipcenter/pkg/crypto"
)

const (
	maxCodeAttempts  = 5
	defaultListLimit = 20
	maxListLimit     = 100
)

type IssuedCode struct {
	ID             uuid.UUID            `json:"id"`
	Code           string               `json:"code"`
	MembershipType model.MembershipType `json:"membership_type"`
	ExpiresAt      time.Time            `json:"expires_at"`
}

type IssueResult struct {
	BatchID        string               `json:"batch_id"`
	MembershipType model.MembershipType `json:"membership_type"`
	Codes          []IssuedCode         `json:"codes"`
	Count          int                  `json:"count"`
	Failed         int                  `json:"failed"`
}

type CodeListFilter struct {
	Status         string
	MembershipType model.MembershipType
	Limit          int
	Offset         int
}

type CodeList struct {
	Codes   []model.MembershipCode `json:"codes"`
	Total   int64                  `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	HasMore bool                   `json:"has_more"`
}

type CodeBucket struct {
	MembershipType model.MembershipType `json:"membership_type"`
	Status         model.CodeStatus     `json:"status"`
	Count          int64                `json:"count"`
}

type MembershipStats struct {
	Codes      []CodeBucket                   `json:"codes"`
	TotalCodes int64                          `json:"total_codes"`
	Users      map[model.MembershipType]int64 `json:"users"`
}

type CodeService interface {
	GenerateCodes(ctx context.Context, membershipType model.MembershipType, count int, issuerID uuid.UUID, notes string) (*IssueResult, error)
	ListCodes(ctx context.Context, filter CodeListFilter) (*CodeList, error)
	DeleteCodes(ctx context.Context, ids []uuid.UUID, adminID uuid.UUID) (int64, error)
	Stats(ctx context.Context) (*MembershipStats, error)
}

type codeService struct {
	codes     repository.MembershipCodeRepository
	users     repository.UserRepository
	publisher event.Publisher
	policy    MembershipPolicy
	now       Clock
	logger    *zap.Logger
}

var _ CodeService = (*codeService)(nil)

func NewCodeService(
	codes repository.MembershipCodeRepository,
	users repository.UserRepository,
	publisher event.Publisher,
	policy MembershipPolicy,
	now Clock,
	logger *zap.Logger,
) CodeService {
	return &codeService{
		codes:     codes,
		users:     users,
		publisher: publisher,
		policy:    policy,
		now:       now,
		logger:    logger.Named("codes"),
	}
}

// GenerateCodes issues count codes under one batch id. Each insert stands
// alone, so a partially failed batch still returns the codes that were stored.
func (s *codeService) GenerateCodes(ctx context.Context, membershipType model.MembershipType, count int, issuerID uuid.UUID, notes string) (*IssueResult, error) {
	if !membershipType.Grantable() {
		return nil, ErrInvalidMembershipType
	}
	if count < 1 || count > s.policy.MaxCodesPerBatch {
		return nil, ErrInvalidCount
	}

	now := s.now()
	result := &IssueResult{
		BatchID:        newBatchID(now),
		MembershipType: membershipType,
		Codes:          make([]IssuedCode, 0, count),
	}
	expiresAt := now.Add(s.policy.CodeValidity)

	var lastErr error
	for i := 0; i < count; i++ {
		mc, err := s.insertUniqueCode(ctx, &model.MembershipCode{
			MembershipType: membershipType,
			Status:         model.CodeStatusActive,
			ExpiresAt:      expiresAt,
			BatchID:        result.BatchID,
			GeneratedBy:    issuerID,
			Notes:          notes,
		})
		if err != nil {
			s.logger.Error("issue membership code", zap.String("batch_id", result.BatchID), zap.Error(err))
			result.Failed++
			lastErr = err
			continue
		}
		result.Codes = append(result.Codes, IssuedCode{
			ID:             mc.ID,
			Code:           mc.Code,
			MembershipType: mc.MembershipType,
			ExpiresAt:      mc.ExpiresAt,
		})
	}
	result.Count = len(result.Codes)
	if result.Count == 0 {
		return nil, fmt.Errorf("issue codes: %w", lastErr)
	}

	s.logger.Info("membership codes issued",
		zap.String("admin_id", issuerID.String()),
		zap.String("batch_id", result.BatchID),
		zap.String("membership_type", string(membershipType)),
		zap.Int("count", result.Count),
		zap.Int("failed", result.Failed),
	)
	err := event.Emit(ctx, s.publisher, event.TypeCodesIssued, event.CodesIssued{
		BatchID:        result.BatchID,
		MembershipType: string(membershipType),
		Count:          result.Count,
		Failed:         result.Failed,
		IssuedBy:       issuerID,
	})
	if err != nil {
		s.logger.Warn("publish issue event", zap.Error(err))
	}
	return result, nil
}

// insertUniqueCode draws codes until one is free. The existence check avoids
// most collisions; the unique index catches the rest.
func (s *codeService) insertUniqueCode(ctx context.Context, mc *model.MembershipCode) (*model.MembershipCode, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := crypto.GenerateMembershipCode()
		if err != nil {
			return nil, err
		}
		exists, err := s.codes.ExistsByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check code: %w", err)
		}
		if exists {
			continue
		}

		candidate := *mc
		candidate.Code = code
		err = s.codes.Create(ctx, &candidate)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create code: %w", err)
		}
		return &candidate, nil
	}
	return nil, fmt.Errorf("no unique code after %d attempts", maxCodeAttempts)
}

func (s *codeService) ListCodes(ctx context.Context, filter CodeListFilter) (*CodeList, error) {
	switch filter.Status {
	case "", "all", "unused", "used", "expired":
	default:
		return nil, ErrInvalidCodeFilter
	}
	if filter.MembershipType != "" && !filter.MembershipType.Grantable() {
		return nil, ErrInvalidMembershipType
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	codes, total, err := s.codes.List(ctx, repository.CodeFilter{
		Status:         filter.Status,
		MembershipType: filter.MembershipType,
		Now:            s.now(),
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return &CodeList{
		Codes:   codes,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: int64(filter.Offset+len(codes)) < total,
	}, nil
}

// DeleteCodes hides codes from every query. The rows stay for audit.
func (s *codeService) DeleteCodes(ctx context.Context, ids []uuid.UUID, adminID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoCodeIDs
	}
	deleted, err := s.codes.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete codes: %w", err)
	}

	s.logger.Info("membership codes deleted",
		zap.String("admin_id", adminID.String()),
		zap.Int("requested", len(ids)),
		zap.Int64("deleted", deleted),
	)
	err = event.Emit(ctx, s.publisher, event.TypeCodesDeleted, event.CodesDeleted{
		CodeIDs:   ids,
		Deleted:   deleted,
		DeletedBy: adminID,
	})
	if err != nil {
		s.logger.Warn("publish delete event", zap.Error(err))
	}
	return deleted, nil
}

func (s *codeService) Stats(ctx context.Context) (*MembershipStats, error) {
	return collectStats(ctx, s.codes, s.users)
}

// collectStats reports codes in all six type × status buckets, zero-filled,
// plus users per membership type.
func collectStats(ctx context.Context, codes repository.MembershipCodeRepository, users repository.UserRepository) (*MembershipStats, error) {
	counts, err := codes.CountByTypeStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count codes: %w", err)
	}
	byKey := make(map[string]int64, len(counts))
	for _, c := range counts {
		byKey[string(c.MembershipType)+"/"+string(c.Status)] = c.Count
	}

	stats := &MembershipStats{Codes: make([]CodeBucket, 0, 6)}
	for _, typ := range []model.MembershipType{model.MembershipMonthly, model.MembershipPermanent} {
		for _, status := range []model.CodeStatus{model.CodeStatusActive, model.CodeStatusUsed, model.CodeStatusExpired} {
			n := byKey[string(typ)+"/"+string(status)]
			stats.Codes = append(stats.Codes, CodeBucket{MembershipType: typ, Status: status, Count: n})
			stats.TotalCodes += n
		}
	}

	stats.Users, err = users.CountByMembershipType(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	for _, typ := range []model.MembershipType{model.MembershipFree, model.MembershipMonthly, model.MembershipPermanent} {
		if _, ok := stats.Users[typ]; !ok {
			stats.Users[typ] = 0
		}
	}
	return stats, nil
}

func newBatchID(now time.Time) string {
	return "batch_" + now.Format("20060102150405") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
