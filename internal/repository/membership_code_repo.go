package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wallpaper/vipcenter/internal/model"
)

// CodeFilter selects codes for the admin listing. Status is one of
// "", "all", "unused", "used" or "expired".
type CodeFilter struct {
	Status         string
	MembershipType model.MembershipType
	Now            time.Time
	Limit          int
	Offset         int
}

type CodeCount struct {
	MembershipType model.MembershipType
	Status         model.CodeStatus
	Count          int64
}

type MembershipCodeRepository interface {
	Create(ctx context.Context, code *model.MembershipCode) error
	// ExistsByCode includes soft-deleted rows, which still hold the unique index.
	ExistsByCode(ctx context.Context, code string) (bool, error)
	GetActiveByCode(ctx context.Context, code string) (*model.MembershipCode, error)
	// Claim marks an active, unexpired code used by userID. It returns false
	// when another redemption got there first.
	Claim(ctx context.Context, id uuid.UUID, userID uuid.UUID, now time.Time) (bool, error)
	List(ctx context.Context, filter CodeFilter) ([]model.MembershipCode, int64, error)
	CountByTypeStatus(ctx context.Context) ([]CodeCount, error)
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
