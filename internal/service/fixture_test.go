package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/dbtest"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
)

const day24 = 24 * time.Hour

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type publishedEvent struct {
	RoutingKey string
	Payload    map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	var envelope struct {
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{RoutingKey: routingKey, Payload: envelope.Payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.RoutingKey == routingKey {
			n++
		}
	}
	return n
}

func testPolicy() MembershipPolicy {
	return MembershipPolicy{
		FreeQuota:           3,
		MonthlyQuota:        10,
		MonthlyDuration:     30 * day24,
		QuotaPeriod:         30 * day24,
		CodeValidity:        365 * day24,
		MaxCodesPerBatch:    100,
		RedeemMaxFailures:   5,
		RedeemFailureWindow: time.Hour,
	}
}

type fixture struct {
	db         *gorm.DB
	repos      repository.Repositories
	transactor repository.Transactor
	state      repository.StateStore
	publisher  *recordingPublisher
	clock      *testClock
	policy     MembershipPolicy

	downloads DownloadLogger
	quota     QuotaService
	redeem    RedemptionService
	codes     CodeService
	sweeper   Sweeper
}

func newFixture(t *testing.T, tweaks ...func(*MembershipPolicy)) *fixture {
	t.Helper()

	policy := testPolicy()
	for _, tweak := range tweaks {
		tweak(&policy)
	}

	db := dbtest.New(t)
	f := &fixture{
		db:         db,
		repos:      repository.NewRepositories(db),
		transactor: repository.NewTransactor(db),
		state:      repository.NewMemoryStateStore(),
		publisher:  &recordingPublisher{},
		clock:      newTestClock(),
		policy:     policy,
	}
	f.build(zap.NewNop())
	return f
}

// build wires the services from the fixture's current collaborators.
func (f *fixture) build(logger *zap.Logger) {
	now := f.clock.Now
	f.downloads = NewDownloadLogger(f.repos.Downloads, f.state, f.publisher, now, logger)
	f.quota = NewQuotaService(f.repos.Users, f.transactor, f.downloads, f.publisher, f.policy, now, logger)
	f.redeem = NewRedemptionService(f.repos.Codes, f.transactor, f.state, f.publisher, f.policy, now, logger)
	f.codes = NewCodeService(f.repos.Codes, f.repos.Users, f.publisher, f.policy, now, logger)
	f.sweeper = NewSweeper(f.repos.Users, f.repos.Codes, f.transactor, f.publisher, f.policy, 2, now, logger)
}

func (f *fixture) createUser(t *testing.T, state model.MembershipState) *model.User {
	t.Helper()
	user := &model.User{Username: "user-" + uuid.NewString()[:8]}
	user.SetMembership(state)
	require.NoError(t, f.repos.Users.Create(context.Background(), user))
	return user
}

func (f *fixture) freeUser(t *testing.T) *model.User {
	return f.createUser(t, model.MembershipState{Type: model.MembershipFree, Quota: f.policy.FreeQuota})
}

// monthlyUser creates a monthly member expiring in expiresIn with the next
// refill resetIn from now.
func (f *fixture) monthlyUser(t *testing.T, quota int, expiresIn, resetIn time.Duration) *model.User {
	now := f.clock.Now()
	expires := now.Add(expiresIn)
	reset := now.Add(resetIn)
	return f.createUser(t, model.MembershipState{
		Type:      model.MembershipMonthly,
		ExpiresAt: &expires,
		Quota:     quota,
		ResetDate: &reset,
	})
}

func (f *fixture) permanentUser(t *testing.T) *model.User {
	return f.createUser(t, model.MembershipState{Type: model.MembershipPermanent, Quota: model.UnlimitedQuota})
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.User {
	t.Helper()
	user, err := f.repos.Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (f *fixture) issueCode(t *testing.T, typ model.MembershipType) *model.MembershipCode {
	t.Helper()
	result, err := f.codes.GenerateCodes(context.Background(), typ, 1, uuid.New(), "")
	require.NoError(t, err)
	require.Len(t, result.Codes, 1)
	mc, err := f.repos.Codes.GetActiveByCode(context.Background(), result.Codes[0].Code)
	require.NoError(t, err)
	return mc
}

func (f *fixture) logCount(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.DownloadLog{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}
