package reconciler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/notify"
)

type stubSubRepo struct {
	lapsed   []models.Subscription
	expiring []models.Subscription
}

func (s *stubSubRepo) Create(sub *models.Subscription) error { return nil }
func (s *stubSubRepo) GetByUserID(userID uint) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubSubRepo) GetByUserIDForUpdate(userID uint) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubSubRepo) Save(sub *models.Subscription) error { return nil }
func (s *stubSubRepo) ListLapsed(now time.Time, limit int) ([]models.Subscription, error) {
	return s.lapsed, nil
}
func (s *stubSubRepo) ListExpiringTrials(now time.Time, within time.Duration, limit int) ([]models.Subscription, error) {
	return s.expiring, nil
}

type fakeExpirer struct {
	calls   []uint
	failFor map[uint]error
	noop    map[uint]bool
}

func (f *fakeExpirer) Expire(userID uint, now time.Time) (*models.Subscription, bool, error) {
	if err := f.failFor[userID]; err != nil {
		return nil, false, err
	}
	f.calls = append(f.calls, userID)
	if f.noop[userID] {
		return &models.Subscription{UserID: userID}, false, nil
	}
	return &models.Subscription{UserID: userID, Tier: models.TierBasic}, true, nil
}

type stubAddonRepo struct {
	expired int64
	err     error
}

func (s *stubAddonRepo) Create(grant *models.AddonGrant) error { return nil }
func (s *stubAddonRepo) ListActiveByUser(userID uint, now time.Time) ([]models.AddonGrant, error) {
	return nil, nil
}
func (s *stubAddonRepo) ExpireLapsed(now time.Time) (int64, error) { return s.expired, s.err }

type fakeEngagementRepo struct {
	engagements map[uint]*models.TrialEngagement
	marked      []uint
}

func (f *fakeEngagementRepo) Create(e *models.TrialEngagement) error { return nil }
func (f *fakeEngagementRepo) GetByUserID(userID uint) (*models.TrialEngagement, error) {
	e, ok := f.engagements[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return e, nil
}
func (f *fakeEngagementRepo) Increment(userID uint, column string, delta int) error { return nil }
func (f *fakeEngagementRepo) MarkReminderSent(userID uint, at time.Time) error {
	f.marked = append(f.marked, userID)
	f.engagements[userID].ReminderSentAt = &at
	return nil
}

type recordingNotifier struct {
	messages []notify.Message
}

func (r *recordingNotifier) Enqueue(msg notify.Message) { r.messages = append(r.messages, msg) }

type fixture struct {
	reconciler *Reconciler
	subs       *stubSubRepo
	expirer    *fakeExpirer
	addons     *stubAddonRepo
	engage     *fakeEngagementRepo
	notifier   *recordingNotifier
}

func newFixture() *fixture {
	subs := &stubSubRepo{}
	expirer := &fakeExpirer{failFor: map[uint]error{}, noop: map[uint]bool{}}
	addons := &stubAddonRepo{}
	engage := &fakeEngagementRepo{engagements: map[uint]*models.TrialEngagement{}}
	notifier := &recordingNotifier{}

	repos := &repository.Repositories{
		Subscription:    subs,
		Addon:           addons,
		TrialEngagement: engage,
	}
	return &fixture{
		reconciler: New(repos, expirer, notifier, defaultSchedule, 100),
		subs:       subs,
		expirer:    expirer,
		addons:     addons,
		engage:     engage,
		notifier:   notifier,
	}
}

func lapsedSub(userID uint, tier string, expiredSince time.Duration, now time.Time) models.Subscription {
	expiry := now.Add(-expiredSince)
	return models.Subscription{UserID: userID, Tier: tier, Status: models.SubscriptionStatusActive, ExpiresAt: &expiry}
}

func TestRunOnceDowngradesAllLapsed(t *testing.T) {
	now := time.Now()
	f := newFixture()
	f.subs.lapsed = []models.Subscription{
		lapsedSub(1, models.TierTrial, time.Hour, now),
		lapsedSub(2, models.TierPremium, 48*time.Hour, now),
		lapsedSub(3, models.TierPro, time.Minute, now),
	}

	result := f.reconciler.RunOnce(now)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 3, result.Downgraded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []uint{1, 2, 3}, f.expirer.calls)
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	now := time.Now()
	f := newFixture()
	f.subs.lapsed = []models.Subscription{
		lapsedSub(1, models.TierPremium, time.Hour, now),
		lapsedSub(2, models.TierPremium, time.Hour, now),
		lapsedSub(3, models.TierPremium, time.Hour, now),
	}
	f.expirer.failFor[2] = errors.New("lock wait timeout exceeded")

	result := f.reconciler.RunOnce(now)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Downgraded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []uint{1, 3}, f.expirer.calls, "failing account must not block the rest")
}

func TestRunOnceCountsOnlyChangedRows(t *testing.T) {
	now := time.Now()
	f := newFixture()
	f.subs.lapsed = []models.Subscription{
		lapsedSub(1, models.TierPremium, time.Hour, now),
		lapsedSub(2, models.TierPremium, time.Hour, now),
	}
	f.expirer.noop[2] = true

	result := f.reconciler.RunOnce(now)

	assert.Equal(t, 1, result.Downgraded, "no-op expiries are not downgrades")
	assert.Equal(t, 0, result.Failed)
}

func TestRunOnceExpiresAddonGrants(t *testing.T) {
	f := newFixture()
	f.addons.expired = 5

	result := f.reconciler.RunOnce(time.Now())
	assert.Equal(t, int64(5), result.AddonsExpired)
}

func TestRunOnceSendsTrialReminderOnce(t *testing.T) {
	now := time.Now()
	expiry := now.Add(2 * 24 * time.Hour)
	f := newFixture()
	f.subs.expiring = []models.Subscription{
		{ID: 9, UserID: 7, Tier: models.TierTrial, Status: models.SubscriptionStatusActive, ExpiresAt: &expiry},
	}
	f.engage.engagements[7] = &models.TrialEngagement{UserID: 7}

	result := f.reconciler.RunOnce(now)
	require.Equal(t, 1, result.RemindersSent)
	assert.Equal(t, []uint{7}, f.engage.marked)
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, notify.KindTrialReminder, f.notifier.messages[0].Kind)
	assert.Equal(t, uint(7), f.notifier.messages[0].UserID)

	// Second sweep sees the reminder flag and stays quiet.
	result = f.reconciler.RunOnce(now.Add(time.Hour))
	assert.Equal(t, 0, result.RemindersSent)
	assert.Len(t, f.notifier.messages, 1)
}

func TestRunOnceReminderFailureDoesNotBlockSweep(t *testing.T) {
	now := time.Now()
	expiry := now.Add(24 * time.Hour)
	f := newFixture()
	f.subs.lapsed = []models.Subscription{lapsedSub(1, models.TierPremium, time.Hour, now)}
	f.subs.expiring = []models.Subscription{
		{UserID: 99, Tier: models.TierTrial, Status: models.SubscriptionStatusActive, ExpiresAt: &expiry},
	}
	// No engagement row for user 99, lookup fails.

	result := f.reconciler.RunOnce(now)
	assert.Equal(t, 1, result.Downgraded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.RemindersSent)
}
