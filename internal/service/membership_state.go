package service

import (
	"context"
	"fmt"
	"time"

	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
)

// StateChange is the transition ResolveMembershipState decided on.
type StateChange int

const (
	StateUnchanged StateChange = iota
	StateRefilled
	StateExpired
)

func (c StateChange) String() string {
	switch c {
	case StateRefilled:
		return "refilled"
	case StateExpired:
		return "expired"
	}
	return "unchanged"
}

// ResolveMembershipState computes the membership a user should hold at now.
// Expiry wins over refill. It touches no storage.
func ResolveMembershipState(user model.User, now time.Time, policy MembershipPolicy) (model.MembershipState, StateChange) {
	current := user.Membership()
	if user.MembershipType != model.MembershipMonthly {
		return current, StateUnchanged
	}

	if user.MembershipExpiresAt == nil || !user.MembershipExpiresAt.After(now) {
		return freeState(policy), StateExpired
	}

	if user.QuotaResetDate != nil && !now.Before(*user.QuotaResetDate) {
		next := nextResetDate(*user.QuotaResetDate, now, policy.QuotaPeriod, *user.MembershipExpiresAt)
		current.Quota = policy.MonthlyQuota
		current.ResetDate = &next
		return current, StateRefilled
	}

	return current, StateUnchanged
}

func freeState(policy MembershipPolicy) model.MembershipState {
	return model.MembershipState{Type: model.MembershipFree, Quota: policy.FreeQuota}
}

// monthlyGrant is the state a freshly redeemed monthly code produces.
func monthlyGrant(now time.Time, policy MembershipPolicy) model.MembershipState {
	expires := now.Add(policy.MonthlyDuration)
	reset := now.Add(policy.QuotaPeriod)
	if reset.After(expires) {
		reset = expires
	}
	return model.MembershipState{
		Type:      model.MembershipMonthly,
		ExpiresAt: &expires,
		Quota:     policy.MonthlyQuota,
		ResetDate: &reset,
	}
}

func permanentGrant() model.MembershipState {
	return model.MembershipState{Type: model.MembershipPermanent, Quota: model.UnlimitedQuota}
}

// nextResetDate advances reset by whole periods until it lies after now,
// never past expires.
func nextResetDate(reset, now time.Time, period time.Duration, expires time.Time) time.Time {
	if period <= 0 {
		return expires
	}
	steps := now.Sub(reset)/period + 1
	next := reset.Add(steps * period)
	if next.After(expires) {
		return expires
	}
	return next
}

// syncMembershipState resolves the user's membership at now and persists the
// outcome through the same guarded writes the sweeper uses. user is updated
// in place to what is stored afterwards. applied is false when another writer
// stored the transition first.
func syncMembershipState(ctx context.Context, users repository.UserRepository, user *model.User, now time.Time, policy MembershipPolicy) (change StateChange, applied bool, err error) {
	state, change := ResolveMembershipState(*user, now, policy)
	switch change {
	case StateExpired:
		applied, err = expireMembership(ctx, users, user, now, policy)
	case StateRefilled:
		applied, err = refillQuota(ctx, users, user, state)
	}
	return change, applied, err
}

// expireMembership downgrades an expired monthly member to free and reports
// whether this call made the write. When the guarded write matches nothing
// the stored row is reloaded.
func expireMembership(ctx context.Context, users repository.UserRepository, user *model.User, now time.Time, policy MembershipPolicy) (bool, error) {
	ok, err := users.ExpireMembership(ctx, user.ID, now, policy.FreeQuota)
	if err != nil {
		return false, fmt.Errorf("expire membership: %w", err)
	}
	if ok {
		user.SetMembership(freeState(policy))
		return true, nil
	}
	return false, reloadUser(ctx, users, user)
}

// refillQuota stores state only if the reset date the caller saw is still
// current, so concurrent callers refill once.
func refillQuota(ctx context.Context, users repository.UserRepository, user *model.User, state model.MembershipState) (bool, error) {
	ok, err := users.RefillQuota(ctx, user.ID, *user.QuotaResetDate, state.Quota, *state.ResetDate)
	if err != nil {
		return false, fmt.Errorf("refill quota: %w", err)
	}
	if ok {
		user.SetMembership(state)
		return true, nil
	}
	return false, reloadUser(ctx, users, user)
}

func reloadUser(ctx context.Context, users repository.UserRepository, user *model.User) error {
	fresh, err := users.GetByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("reload user: %w", err)
	}
	*user = *fresh
	return nil
}
