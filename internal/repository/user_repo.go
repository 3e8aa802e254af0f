package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wallpaper/vipcenter/internal/model"
)

// UserRepository persists the membership record. Every mutating method is a
// single guarded UPDATE and reports whether a row matched the guard.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// ExpireMembership downgrades a monthly member whose expiry is at or
	// before now (or missing) to the free tier.
	ExpireMembership(ctx context.Context, id uuid.UUID, now time.Time, freeQuota int) (bool, error)
	// RefillQuota swaps in a fresh balance only if quota_reset_date still
	// equals expectedReset.
	RefillQuota(ctx context.Context, id uuid.UUID, expectedReset time.Time, quota int, nextReset time.Time) (bool, error)
	// DecrementQuota takes one unit from an unexpired monthly member with a
	// positive balance.
	DecrementQuota(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ApplyGrant(ctx context.Context, id uuid.UUID, state model.MembershipState) (bool, error)

	ListExpiredMonthly(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]model.User, error)
	ListDueQuotaResets(ctx context.Context, now time.Time, afterID uuid.UUID, limit int) ([]model.User, error)
	CountByMembershipType(ctx context.Context) (map[model.MembershipType]int64, error)
}
