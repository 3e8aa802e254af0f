package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
)

// SweepReport counts the per-user outcomes of one batch task.
type SweepReport struct {
	Task      string        `json:"task"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

type SweepSummary struct {
	Expired      *SweepReport     `json:"expired_memberships"`
	QuotaResets  *SweepReport     `json:"quota_resets"`
	ExpiredCodes int64            `json:"expired_codes"`
	Stats        *MembershipStats `json:"stats"`
}

// Sweeper runs the scheduled membership maintenance tasks.
type Sweeper interface {
	ExpireMemberships(ctx context.Context) (*SweepReport, error)
	ResetQuotas(ctx context.Context) (*SweepReport, error)
	ExpireCodes(ctx context.Context) (int64, error)
	Report(ctx context.Context) (*MembershipStats, error)
	RunAll(ctx context.Context) (*SweepSummary, error)
	// Run calls RunAll every interval until ctx is cancelled.
	Run(ctx context.Context, interval time.Duration)
}

type sweeper struct {
	users      repository.UserRepository
	codes      repository.MembershipCodeRepository
	transactor repository.Transactor
	publisher  event.Publisher
	policy     MembershipPolicy
	batchSize  int
	now        Clock
	logger     *zap.Logger
}

var _ Sweeper = (*sweeper)(nil)

func NewSweeper(
	users repository.UserRepository,
	codes repository.MembershipCodeRepository,
	transactor repository.Transactor,
	publisher event.Publisher,
	policy MembershipPolicy,
	batchSize int,
	now Clock,
	logger *zap.Logger,
) Sweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &sweeper{
		users:      users,
		codes:      codes,
		transactor: transactor,
		publisher:  publisher,
		policy:     policy,
		batchSize:  batchSize,
		now:        now,
		logger:     logger.Named("sweeper"),
	}
}

// ExpireMemberships downgrades every monthly member whose expiry has passed.
// Each user gets its own transaction; a failing user is logged and skipped.
func (s *sweeper) ExpireMemberships(ctx context.Context) (*SweepReport, error) {
	now := s.now()
	report := &SweepReport{Task: "expire_memberships"}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	err := s.forEachPage(ctx, func(after uuid.UUID) ([]model.User, error) {
		return s.users.ListExpiredMonthly(ctx, now, after, s.batchSize)
	}, func(user *model.User) {
		var applied bool
		err := s.transactor.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			applied, err = expireMembership(ctx, repos.Users, user, now, s.policy)
			return err
		})
		switch {
		case err != nil:
			report.Failed++
			s.logger.Error("expire membership", zap.String("user_id", user.ID.String()), zap.Error(err))
		case !applied:
			report.Skipped++
		default:
			report.Processed++
			s.logger.Info("membership expired", zap.String("user_id", user.ID.String()))
			if err := event.Emit(ctx, s.publisher, event.TypeMembershipExpired, event.MembershipExpired{UserID: user.ID, Source: "sweeper"}); err != nil {
				s.logger.Warn("publish expiry event", zap.Error(err))
			}
		}
	})
	return report, err
}

// ResetQuotas refills monthly members whose reset date has arrived, using the
// same compare-and-swap as the on-access refill.
func (s *sweeper) ResetQuotas(ctx context.Context) (*SweepReport, error) {
	now := s.now()
	report := &SweepReport{Task: "reset_quotas"}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	err := s.forEachPage(ctx, func(after uuid.UUID) ([]model.User, error) {
		return s.users.ListDueQuotaResets(ctx, now, after, s.batchSize)
	}, func(user *model.User) {
		state, change := ResolveMembershipState(*user, now, s.policy)
		if change != StateRefilled {
			report.Skipped++
			return
		}
		applied, err := refillQuota(ctx, s.users, user, state)
		switch {
		case err != nil:
			report.Failed++
			s.logger.Error("reset quota", zap.String("user_id", user.ID.String()), zap.Error(err))
		case !applied:
			report.Skipped++
		default:
			report.Processed++
		}
	})
	return report, err
}

// forEachPage walks list results by ascending id until a page comes back empty.
func (s *sweeper) forEachPage(ctx context.Context, list func(after uuid.UUID) ([]model.User, error), visit func(user *model.User)) error {
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := list(after)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		for i := range page {
			visit(&page[i])
		}
		after = page[len(page)-1].ID
	}
}

func (s *sweeper) ExpireCodes(ctx context.Context) (int64, error) {
	n, err := s.codes.MarkExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark expired codes: %w", err)
	}
	return n, nil
}

func (s *sweeper) Report(ctx context.Context) (*MembershipStats, error) {
	return collectStats(ctx, s.codes, s.users)
}

// RunAll runs every task in order. A failing task is logged and the rest
// still run; the first error is returned.
func (s *sweeper) RunAll(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}
	var firstErr error
	keep := func(task string, err error) {
		if err == nil {
			return
		}
		s.logger.Error("sweep task failed", zap.String("task", task), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	var err error
	summary.Expired, err = s.ExpireMemberships(ctx)
	keep("expire_memberships", err)
	summary.QuotaResets, err = s.ResetQuotas(ctx)
	keep("reset_quotas", err)
	summary.ExpiredCodes, err = s.ExpireCodes(ctx)
	keep("expire_codes", err)
	summary.Stats, err = s.Report(ctx)
	keep("report", err)

	s.logger.Info("sweep completed",
		zap.Int("expired", summary.Expired.Processed),
		zap.Int("expire_failed", summary.Expired.Failed),
		zap.Int("quota_resets", summary.QuotaResets.Processed),
		zap.Int64("expired_codes", summary.ExpiredCodes),
	)
	return summary, firstErr
}

func (s *sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunAll(ctx); err != nil {
				s.logger.Error("scheduled sweep failed", zap.Error(err))
			}
		}
	}
}
