package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
)

func TestRedeem_MonthlyCodeThenReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mc := f.issueCode(t, model.MembershipMonthly)
	first := f.freeUser(t)
	second := f.freeUser(t)

	res, err := f.redeem.Redeem(ctx, mc.Code, first.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.MembershipMonthly, res.GrantedType)
	assert.Equal(t, 10, res.DownloadQuota)

	got := f.reload(t, first.ID)
	now := f.clock.Now()
	assert.Equal(t, model.MembershipMonthly, got.MembershipType)
	assert.Equal(t, 10, got.DownloadQuota)
	require.NotNil(t, got.MembershipExpiresAt)
	assert.True(t, got.MembershipExpiresAt.Equal(now.Add(30*day24)))
	require.NotNil(t, got.QuotaResetDate)
	assert.False(t, got.QuotaResetDate.After(*got.MembershipExpiresAt))

	var stored model.MembershipCode
	require.NoError(t, f.db.First(&stored, "id = ?", mc.ID).Error)
	assert.Equal(t, model.CodeStatusUsed, stored.Status)
	require.NotNil(t, stored.UsedByUserID)
	assert.Equal(t, first.ID, *stored.UsedByUserID)
	require.NotNil(t, stored.UsedAt)
	assert.Equal(t, 1, f.publisher.count(event.TypeMembershipRedeemed))

	res, err = f.redeem.Redeem(ctx, mc.Code, second.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ReasonCodeNotFound, res.Reason)
	assert.Equal(t, "not found or already used", res.Message)
	assert.Equal(t, second.Membership(), f.reload(t, second.ID).Membership())
}

// A permanent grant clears expiry and sets the unlimited sentinel.
func TestRedeem_PermanentCode(t *testing.T) {
	f := newFixture(t)
	mc := f.issueCode(t, model.MembershipPermanent)
	user := f.monthlyUser(t, 4, 10*day24, 5*day24)

	res, err := f.redeem.Redeem(context.Background(), mc.Code, user.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.ExpiresAt)

	got := f.reload(t, user.ID)
	assert.Equal(t, model.MembershipPermanent, got.MembershipType)
	assert.Equal(t, model.UnlimitedQuota, got.DownloadQuota)
	assert.Nil(t, got.MembershipExpiresAt)
	assert.Nil(t, got.QuotaResetDate)
}

func TestRedeem_InvalidFormat(t *testing.T) {
	f := newFixture(t)
	user := f.freeUser(t)

	for _, code := range []string{"", "short", "abcdef123456", "ABCDEF12345!", "ABCDEF1234567"} {
		_, err := f.redeem.Redeem(context.Background(), code, user.ID)
		assert.ErrorIs(t, err, ErrInvalidCodeFormat, code)
	}
}

func TestRedeem_ExpiredCodeMutatesNothing(t *testing.T) {
	f := newFixture(t)
	mc := f.issueCode(t, model.MembershipMonthly)
	user := f.freeUser(t)

	f.clock.Advance(f.policy.CodeValidity)
	res, err := f.redeem.Redeem(context.Background(), mc.Code, user.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ReasonCodeExpired, res.Reason)

	got, err := f.repos.Codes.GetActiveByCode(context.Background(), mc.Code)
	require.NoError(t, err)
	assert.Nil(t, got.UsedByUserID)
	assert.Equal(t, model.MembershipFree, f.reload(t, user.ID).MembershipType)
}

func TestRedeem_UnknownUserRollsBack(t *testing.T) {
	f := newFixture(t)
	mc := f.issueCode(t, model.MembershipMonthly)

	res, err := f.redeem.Redeem(context.Background(), mc.Code, uuid.New())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ReasonUserNotFound, res.Reason)

	got, err := f.repos.Codes.GetActiveByCode(context.Background(), mc.Code)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusActive, got.Status)
}

func TestRedeem_GrantFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mc := f.issueCode(t, model.MembershipMonthly)
	user := f.freeUser(t)

	redeem := NewRedemptionService(f.repos.Codes, failingTransactor{Transactor: f.transactor, failFor: user.ID},
		f.state, f.publisher, f.policy, f.clock.Now, zap.NewNop())
	res, err := redeem.Redeem(ctx, mc.Code, user.ID)
	require.Error(t, err)
	assert.Nil(t, res)

	// The claim rolled back with the failed grant.
	got, err := f.repos.Codes.GetActiveByCode(ctx, mc.Code)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusActive, got.Status)
	assert.Nil(t, got.UsedByUserID)
	assert.Equal(t, model.MembershipFree, f.reload(t, user.ID).MembershipType)
	assert.Zero(t, f.publisher.count(event.TypeMembershipRedeemed))

	// The code is still redeemable once the write goes through.
	res, err = f.redeem.Redeem(ctx, mc.Code, user.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.MembershipMonthly, f.reload(t, user.ID).MembershipType)
}

func TestRedeem_PermanentMemberKeepsMonthlyCode(t *testing.T) {
	f := newFixture(t)
	mc := f.issueCode(t, model.MembershipMonthly)
	user := f.permanentUser(t)

	res, err := f.redeem.Redeem(context.Background(), mc.Code, user.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ReasonAlreadyPermanent, res.Reason)

	_, err = f.repos.Codes.GetActiveByCode(context.Background(), mc.Code)
	assert.NoError(t, err)
	assert.Equal(t, model.MembershipPermanent, f.reload(t, user.ID).MembershipType)
}

func TestRedeem_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	mc := f.issueCode(t, model.MembershipMonthly)

	const redeemers = 8
	users := make([]*model.User, redeemers)
	for i := range users {
		users[i] = f.freeUser(t)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			res, err := f.redeem.Redeem(context.Background(), mc.Code, userID)
			if !assert.NoError(t, err) {
				return
			}
			if res.Success {
				mu.Lock()
				winners = append(winners, userID)
				mu.Unlock()
			} else {
				assert.Equal(t, model.ReasonCodeNotFound, res.Reason)
			}
		}(u.ID)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	for _, u := range users {
		got := f.reload(t, u.ID)
		if u.ID == winners[0] {
			assert.Equal(t, model.MembershipMonthly, got.MembershipType)
		} else {
			assert.Equal(t, model.MembershipFree, got.MembershipType)
		}
	}
}

func TestRedeem_ThrottlesRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.freeUser(t)
	mc := f.issueCode(t, model.MembershipMonthly)

	for i := 0; i < f.policy.RedeemMaxFailures; i++ {
		res, err := f.redeem.Redeem(ctx, "ZZZZZZZZZZZZ", user.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReasonCodeNotFound, res.Reason)
	}

	res, err := f.redeem.Redeem(ctx, mc.Code, user.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ReasonTooManyAttempts, res.Reason)

	// Other users are unaffected.
	other := f.freeUser(t)
	res, err = f.redeem.Redeem(ctx, mc.Code, other.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
}
