package payment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/notify"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/subscription"
)

type fakeWebhookEventRepo struct {
	events    map[string]*models.GatewayWebhookEvent
	processed map[uint]string
	nextID    uint
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{
		events:    make(map[string]*models.GatewayWebhookEvent),
		processed: make(map[uint]string),
	}
}

func (f *fakeWebhookEventRepo) CreateIfNotExists(event *models.GatewayWebhookEvent) (bool, *models.GatewayWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.events[key] = event
	return true, event, nil
}

func (f *fakeWebhookEventRepo) MarkProcessed(id uint, processingError string) error {
	f.processed[id] = processingError
	for _, event := range f.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
		}
	}
	return nil
}

type fakeActivator struct {
	calls  []subscription.ActivationInput
	subs   map[uint]*models.Subscription
	err    error
	nextID uint
}

func newFakeActivator() *fakeActivator {
	return &fakeActivator{subs: make(map[uint]*models.Subscription)}
}

func (f *fakeActivator) ActivatePaid(in subscription.ActivationInput) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, in)
	sub, ok := f.subs[in.UserID]
	if !ok {
		f.nextID++
		sub = &models.Subscription{ID: f.nextID, UserID: in.UserID}
		f.subs[in.UserID] = sub
	}
	sub.Tier = in.Tier
	sub.Status = models.SubscriptionStatusActive
	return sub, nil
}

type stubSubscriptionRepo struct {
	subs map[uint]*models.Subscription
}

func (s *stubSubscriptionRepo) Create(sub *models.Subscription) error { return nil }

func (s *stubSubscriptionRepo) GetByUserID(userID uint) (*models.Subscription, error) {
	sub, ok := s.subs[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (s *stubSubscriptionRepo) GetByUserIDForUpdate(userID uint) (*models.Subscription, error) {
	return s.GetByUserID(userID)
}

func (s *stubSubscriptionRepo) Save(sub *models.Subscription) error { return nil }

func (s *stubSubscriptionRepo) ListLapsed(now time.Time, limit int) ([]models.Subscription, error) {
	return nil, nil
}

func (s *stubSubscriptionRepo) ListExpiringTrials(now time.Time, within time.Duration, limit int) ([]models.Subscription, error) {
	return nil, nil
}

type stubPlanRepo struct {
	plans map[string]*models.SubscriptionPlan
}

func (s *stubPlanRepo) GetByID(id uint) (*models.SubscriptionPlan, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPlanRepo) GetActiveByTier(tier string, categoryID *uint, region *string) (*models.SubscriptionPlan, error) {
	plan, ok := s.plans[tier]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return plan, nil
}

func (s *stubPlanRepo) ListActive(categoryID *uint, region *string) ([]models.SubscriptionPlan, error) {
	return nil, nil
}

type recordingInvoiceRepo struct {
	invoices []models.Invoice
}

func (r *recordingInvoiceRepo) Create(inv *models.Invoice) error {
	r.invoices = append(r.invoices, *inv)
	return nil
}

func (r *recordingInvoiceRepo) HasPaid(userID uint) (bool, error) { return false, nil }

func (r *recordingInvoiceRepo) ListByUser(userID uint, limit, offset int) ([]models.Invoice, error) {
	return nil, nil
}

type recordingNotifier struct {
	messages []notify.Message
}

func (r *recordingNotifier) Enqueue(msg notify.Message) {
	r.messages = append(r.messages, msg)
}

type adapterFixture struct {
	adapter   *Adapter
	events    *fakeWebhookEventRepo
	activator *fakeActivator
	subs      *stubSubscriptionRepo
	invoices  *recordingInvoiceRepo
	notifier  *recordingNotifier
}

const testWebhookSecret = "whsec_adapter_test"

func newAdapterFixture() *adapterFixture {
	events := newFakeWebhookEventRepo()
	activator := newFakeActivator()
	subs := &stubSubscriptionRepo{subs: make(map[uint]*models.Subscription)}
	invoices := &recordingInvoiceRepo{}
	notifier := &recordingNotifier{}

	repos := &repository.Repositories{
		Plan: &stubPlanRepo{plans: map[string]*models.SubscriptionPlan{
			models.TierPremium: {Tier: models.TierPremium, Credits: 50},
			models.TierPro:     {Tier: models.TierPro, Credits: models.CreditsUnlimited},
		}},
		Subscription: subs,
		WebhookEvent: events,
		Invoice:      invoices,
	}

	return &adapterFixture{
		adapter:   NewAdapter(repos, activator, notifier, testWebhookSecret),
		events:    events,
		activator: activator,
		subs:      subs,
		invoices:  invoices,
		notifier:  notifier,
	}
}

func signedCheckoutPayload(eventID string, userID uint) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "%s",
		"type": "checkout.session.completed",
		"created": 1756400000,
		"data": {"object": {
			"id": "cs_1",
			"amount_total": 7120,
			"currency": "eur",
			"payment_intent": "pi_1",
			"metadata": {
				"user_id": "%d",
				"plan_tier": "PREMIUM",
				"credits": "50",
				"final_price": "71.2",
				"discount_type": "TRIAL_UPGRADE",
				"discount_amount": "17.8"
			}
		}}
	}`, eventID, userID))
}

func TestHandleWebhookRejectsInvalidSignature(t *testing.T) {
	f := newAdapterFixture()
	payload := signedCheckoutPayload("evt_1", 42)

	err := f.adapter.HandleWebhook(payload, signPayload(payload, "1756400000", "whsec_wrong"))
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)
	assert.Empty(t, f.events.events, "rejected event must not be recorded")
	assert.Empty(t, f.activator.calls, "rejected event must not reach the state machine")
}

func TestHandleWebhookCheckoutCompleted(t *testing.T) {
	f := newAdapterFixture()
	payload := signedCheckoutPayload("evt_1", 42)

	err := f.adapter.HandleWebhook(payload, signPayload(payload, "1756400000", testWebhookSecret))
	require.NoError(t, err)

	require.Len(t, f.activator.calls, 1)
	call := f.activator.calls[0]
	assert.Equal(t, uint(42), call.UserID)
	assert.Equal(t, models.TierPremium, call.Tier)
	assert.Equal(t, 50, call.Credits)
	assert.Equal(t, "71.2", call.Price.String())
	assert.Equal(t, billing.DiscountTrialUpgrade, call.DiscountType)
	assert.Equal(t, "evt_1", call.GatewayEventID)
	assert.Equal(t, int64(1756400000), call.Now.Unix())

	require.Len(t, f.invoices.invoices, 1)
	inv := f.invoices.invoices[0]
	assert.Equal(t, int64(7120), inv.AmountCents)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, "pi_1", inv.GatewayPaymentRef)

	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, notify.KindPaymentConfirmed, f.notifier.messages[0].Kind)

	require.Len(t, f.events.processed, 1)
	for _, errMsg := range f.events.processed {
		assert.Empty(t, errMsg)
	}
}

func TestHandleWebhookDuplicateEventIsTypedNoop(t *testing.T) {
	f := newAdapterFixture()
	payload := signedCheckoutPayload("evt_1", 42)
	header := signPayload(payload, "1756400000", testWebhookSecret)

	require.NoError(t, f.adapter.HandleWebhook(payload, header))

	err := f.adapter.HandleWebhook(payload, header)
	assert.ErrorIs(t, err, billing.ErrAlreadyApplied)

	assert.Len(t, f.activator.calls, 1, "replay must not activate twice")
	assert.Len(t, f.invoices.invoices, 1, "replay must not invoice twice")
	assert.Len(t, f.notifier.messages, 1, "replay must not notify twice")
}

func TestHandleWebhookInvoicePaidRenewsCurrentTier(t *testing.T) {
	f := newAdapterFixture()
	f.subs.subs[7] = &models.Subscription{
		ID:     3,
		UserID: 7,
		Tier:   models.TierPro,
		Status: models.SubscriptionStatusActive,
	}
	f.activator.subs[7] = f.subs.subs[7]

	payload := []byte(`{
		"id": "evt_renew_1",
		"type": "invoice.paid",
		"created": 1756400000,
		"data": {"object": {
			"id": "in_1",
			"amount_paid": 14900,
			"currency": "eur",
			"metadata": {"user_id": "7"}
		}}
	}`)

	err := f.adapter.HandleWebhook(payload, signPayload(payload, "1756400000", testWebhookSecret))
	require.NoError(t, err)

	require.Len(t, f.activator.calls, 1)
	call := f.activator.calls[0]
	assert.Equal(t, models.TierPro, call.Tier, "renewal keeps the current tier")
	assert.Equal(t, models.CreditsUnlimited, call.Credits, "credits resolved from the plan")
	assert.Equal(t, "evt_renew_1", call.GatewayEventID)

	require.Len(t, f.invoices.invoices, 1)
	assert.Equal(t, int64(14900), f.invoices.invoices[0].AmountCents)
}

func TestHandleWebhookInvoicePaidWithoutPaidTier(t *testing.T) {
	f := newAdapterFixture()
	f.subs.subs[7] = &models.Subscription{ID: 3, UserID: 7, Tier: models.TierBasic, Status: models.SubscriptionStatusActive}

	payload := []byte(`{
		"id": "evt_renew_2",
		"type": "invoice.paid",
		"data": {"object": {"metadata": {"user_id": "7"}}}
	}`)

	err := f.adapter.HandleWebhook(payload, signPayload(payload, "1756400000", testWebhookSecret))
	require.NoError(t, err)
	assert.Empty(t, f.activator.calls, "basic tier has nothing to renew")
}

func TestHandleWebhookInvoiceFailedNotifiesOnly(t *testing.T) {
	f := newAdapterFixture()

	payload := []byte(`{
		"id": "evt_fail_1",
		"type": "invoice.payment_failed",
		"data": {"object": {"metadata": {"user_id": "7"}}}
	}`)

	err := f.adapter.HandleWebhook(payload, signPayload(payload, "1756400000", testWebhookSecret))
	require.NoError(t, err)

	assert.Empty(t, f.activator.calls)
	assert.Empty(t, f.invoices.invoices)
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, notify.KindPaymentFailed, f.notifier.messages[0].Kind)
}

func TestHandleWebhookRecordsProcessingError(t *testing.T) {
	f := newAdapterFixture()
	f.activator.err = errors.New("tier is not purchasable")
	payload := signedCheckoutPayload("evt_1", 42)

	err := f.adapter.HandleWebhook(payload, signPayload(payload, "1756400000", testWebhookSecret))
	require.Error(t, err)

	require.Len(t, f.events.processed, 1)
	for _, errMsg := range f.events.processed {
		assert.Contains(t, errMsg, "not purchasable")
	}
	assert.Empty(t, f.invoices.invoices)
	assert.Empty(t, f.notifier.messages)
}

func TestHandleWebhookRetryAfterTransientFailure(t *testing.T) {
	f := newAdapterFixture()
	payload := signedCheckoutPayload("evt_1", 42)
	header := signPayload(payload, "1756400000", testWebhookSecret)

	f.activator.err = errors.New("lock wait timeout exceeded")
	err := f.adapter.HandleWebhook(payload, header)
	require.Error(t, err)
	assert.Empty(t, f.activator.calls)

	// The gateway retries the same event after the 5xx; this time the
	// activation succeeds and the grant lands exactly once.
	f.activator.err = nil
	require.NoError(t, f.adapter.HandleWebhook(payload, header))
	assert.Len(t, f.activator.calls, 1)
	assert.Len(t, f.invoices.invoices, 1)

	// A third delivery is now a true duplicate.
	err = f.adapter.HandleWebhook(payload, header)
	assert.ErrorIs(t, err, billing.ErrAlreadyApplied)
	assert.Len(t, f.activator.calls, 1)
	assert.Len(t, f.invoices.invoices, 1)
}

func TestHandleWebhookFinalPriceFallback(t *testing.T) {
	payload := []byte(`{
		"id": "evt_amount",
		"type": "invoice.paid",
		"data": {"object": {"amount_paid": 8900, "currency": "eur", "metadata": {"user_id": "7"}}}
	}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.True(t, event.FinalPrice.Equal(decimal.NewFromInt(89)))
}
