package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
	"wallpaper/vipcenter/pkg/crypto"
)

// flakyCodes reports the first `collisions` lookups as taken and fails the
// inserts listed in failOn (1-based).
type flakyCodes struct {
	repository.MembershipCodeRepository
	collisions int
	failOn     map[int]bool
	creates    int
	lookups    int
}

func (r *flakyCodes) ExistsByCode(ctx context.Context, code string) (bool, error) {
	r.lookups++
	if r.collisions > 0 {
		r.collisions--
		return true, nil
	}
	return r.MembershipCodeRepository.ExistsByCode(ctx, code)
}

func (r *flakyCodes) Create(ctx context.Context, mc *model.MembershipCode) error {
	r.creates++
	if r.failOn[r.creates] {
		return errors.New("insert failed")
	}
	return r.MembershipCodeRepository.Create(ctx, mc)
}

func TestGenerateCodes_Batch(t *testing.T) {
	f := newFixture(t)
	admin := uuid.New()

	res, err := f.codes.GenerateCodes(context.Background(), model.MembershipMonthly, 5, admin, "spring promo")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
	assert.Zero(t, res.Failed)
	assert.True(t, strings.HasPrefix(res.BatchID, "batch_20260310120000_"))

	seen := map[string]bool{}
	for _, c := range res.Codes {
		assert.True(t, crypto.IsMembershipCode(c.Code))
		assert.False(t, seen[c.Code])
		seen[c.Code] = true
		assert.True(t, c.ExpiresAt.Equal(f.clock.Now().Add(f.policy.CodeValidity)))

		stored, err := f.repos.Codes.GetActiveByCode(context.Background(), c.Code)
		require.NoError(t, err)
		assert.Equal(t, res.BatchID, stored.BatchID)
		assert.Equal(t, admin, stored.GeneratedBy)
		assert.Equal(t, "spring promo", stored.Notes)
	}
	assert.Equal(t, 1, f.publisher.count(event.TypeCodesIssued))
}

func TestGenerateCodes_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.codes.GenerateCodes(ctx, model.MembershipFree, 1, uuid.New(), "")
	assert.ErrorIs(t, err, ErrInvalidMembershipType)

	for _, count := range []int{0, -1, 101} {
		_, err = f.codes.GenerateCodes(ctx, model.MembershipMonthly, count, uuid.New(), "")
		assert.ErrorIs(t, err, ErrInvalidCount, count)
	}

	res, err := f.codes.GenerateCodes(ctx, model.MembershipPermanent, 100, uuid.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Count)
}

func TestGenerateCodes_RetriesCollisionsAndReportsFailures(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyCodes{MembershipCodeRepository: f.repos.Codes, collisions: 2, failOn: map[int]bool{2: true}}
	svc := NewCodeService(flaky, f.repos.Users, f.publisher, f.policy, f.clock.Now, zap.NewNop())

	res, err := svc.GenerateCodes(context.Background(), model.MembershipMonthly, 3, uuid.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Codes, 2)
	assert.Equal(t, 5, flaky.lookups)
}

func TestGenerateCodes_AllFailed(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyCodes{MembershipCodeRepository: f.repos.Codes, failOn: map[int]bool{1: true, 2: true}}
	svc := NewCodeService(flaky, f.repos.Users, f.publisher, f.policy, f.clock.Now, zap.NewNop())

	_, err := svc.GenerateCodes(context.Background(), model.MembershipMonthly, 2, uuid.New(), "")
	assert.Error(t, err)
	assert.Zero(t, f.publisher.count(event.TypeCodesIssued))
}

func TestListCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.codes.GenerateCodes(ctx, model.MembershipMonthly, 3, uuid.New(), "")
	require.NoError(t, err)
	perm := f.issueCode(t, model.MembershipPermanent)
	user := f.freeUser(t)
	_, err = f.redeem.Redeem(ctx, perm.Code, user.ID)
	require.NoError(t, err)

	list, err := f.codes.ListCodes(ctx, CodeListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), list.Total)
	assert.Len(t, list.Codes, 2)
	assert.True(t, list.HasMore)

	list, err = f.codes.ListCodes(ctx, CodeListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.False(t, list.HasMore)

	list, err = f.codes.ListCodes(ctx, CodeListFilter{Status: "used"})
	require.NoError(t, err)
	require.Len(t, list.Codes, 1)
	assert.Equal(t, perm.ID, list.Codes[0].ID)
	assert.Equal(t, defaultListLimit, list.Limit)

	list, err = f.codes.ListCodes(ctx, CodeListFilter{Status: "unused", MembershipType: model.MembershipMonthly, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	assert.Equal(t, maxListLimit, list.Limit)

	_, err = f.codes.ListCodes(ctx, CodeListFilter{Status: "pending"})
	assert.ErrorIs(t, err, ErrInvalidCodeFilter)
	_, err = f.codes.ListCodes(ctx, CodeListFilter{MembershipType: "yearly"})
	assert.ErrorIs(t, err, ErrInvalidMembershipType)
}

func TestDeleteCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mc := f.issueCode(t, model.MembershipMonthly)

	_, err := f.codes.DeleteCodes(ctx, nil, uuid.New())
	assert.ErrorIs(t, err, ErrNoCodeIDs)

	n, err := f.codes.DeleteCodes(ctx, []uuid.UUID{mc.ID}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.publisher.count(event.TypeCodesDeleted))

	// A deleted code can no longer be redeemed.
	user := f.freeUser(t)
	res, err := f.redeem.Redeem(ctx, mc.Code, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonCodeNotFound, res.Reason)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.codes.GenerateCodes(ctx, model.MembershipMonthly, 2, uuid.New(), "")
	require.NoError(t, err)
	perm := f.issueCode(t, model.MembershipPermanent)
	user := f.freeUser(t)
	f.freeUser(t)
	_, err = f.redeem.Redeem(ctx, perm.Code, user.ID)
	require.NoError(t, err)

	stats, err := f.codes.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Codes, 6)
	assert.Equal(t, int64(3), stats.TotalCodes)

	buckets := map[string]int64{}
	for _, b := range stats.Codes {
		buckets[string(b.MembershipType)+"/"+string(b.Status)] = b.Count
	}
	assert.Equal(t, int64(2), buckets["monthly/active"])
	assert.Equal(t, int64(1), buckets["permanent/used"])
	assert.Zero(t, buckets["permanent/expired"])

	assert.Equal(t, int64(1), stats.Users[model.MembershipFree])
	assert.Equal(t, int64(1), stats.Users[model.MembershipPermanent])
	assert.Equal(t, int64(0), stats.Users[model.MembershipMonthly])
}
