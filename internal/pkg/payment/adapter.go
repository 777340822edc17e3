package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/notify"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/subscription"
)

// Activator is the slice of the state machine the adapter drives.
type Activator interface {
	ActivatePaid(in subscription.ActivationInput) (*models.Subscription, error)
}

// Adapter turns verified gateway webhooks into state machine calls. The
// webhook event row is recorded before any side effect; its unique
// (provider, event id) pair makes replays a typed no-op.
type Adapter struct {
	repos         *repository.Repositories
	activator     Activator
	notifier      subscription.Notifier
	webhookSecret string
}

// NewAdapter creates a gateway adapter. notifier may be nil.
func NewAdapter(repos *repository.Repositories, activator Activator, notifier subscription.Notifier, webhookSecret string) *Adapter {
	return &Adapter{
		repos:         repos,
		activator:     activator,
		notifier:      notifier,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook verifies, records and processes one gateway event. Duplicate
// events return ErrAlreadyApplied with zero state change.
func (a *Adapter) HandleWebhook(payload []byte, signatureHeader string) error {
	if !VerifySignature(payload, signatureHeader, a.webhookSecret) {
		return billing.ErrInvalidSignature
	}

	event, err := ParseEvent(payload)
	if err != nil {
		return err
	}

	created, stored, err := a.repos.WebhookEvent.CreateIfNotExists(&models.GatewayWebhookEvent{
		Provider:        models.GatewayProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		return err
	}
	if !created {
		// Only a successfully processed event is a true duplicate. Rows
		// stuck after a failed attempt are re-run on the gateway's retry;
		// the unique gateway_event_id indexes on ledger and history rule
		// out double effects.
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			log.Infof("[Payment] duplicate event %s ignored", event.ID)
			return billing.ErrAlreadyApplied
		}
		log.Warnf("[Payment] reprocessing event %s after failed attempt", event.ID)
	}

	processErr := a.process(event)

	errMsg := ""
	if processErr != nil {
		errMsg = processErr.Error()
	}
	if err := a.repos.WebhookEvent.MarkProcessed(stored.ID, errMsg); err != nil {
		log.Errorf("[Payment] mark event %s processed: %v", event.ID, err)
	}
	return processErr
}

func (a *Adapter) process(event *Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		return a.applyCheckoutCompleted(event)
	case EventInvoicePaid:
		return a.applyInvoicePaid(event)
	case EventInvoiceFailed:
		a.enqueue(notify.Message{
			Kind:   notify.KindPaymentFailed,
			UserID: event.UserID,
			Title:  "Zahlung fehlgeschlagen",
			Body:   "Deine letzte Zahlung ist fehlgeschlagen. Bitte aktualisiere deine Zahlungsdaten.",
		})
		return nil
	default:
		return fmt.Errorf("%w: %q", billing.ErrUnknownEventType, event.Type)
	}
}

func (a *Adapter) applyCheckoutCompleted(event *Event) error {
	now := event.OccurredAt
	if now.IsZero() {
		now = time.Now()
	}

	sub, err := a.activator.ActivatePaid(subscription.ActivationInput{
		UserID:         event.UserID,
		Tier:           event.Tier,
		Credits:        event.Credits,
		Price:          event.FinalPrice,
		DiscountType:   event.DiscountType,
		DiscountAmount: event.DiscountAmount,
		ProratedAmount: event.ProrationDelta,
		GatewayEventID: event.ID,
		Now:            now,
	})
	if err != nil {
		return err
	}

	a.writeInvoice(event, sub)
	a.enqueue(notify.Message{
		Kind:        notify.KindPaymentConfirmed,
		UserID:      event.UserID,
		Title:       fmt.Sprintf("%s Abo aktiviert", event.Tier),
		Body:        fmt.Sprintf("Deine Zahlung über %s %s wurde bestätigt.", event.FinalPrice.StringFixed(2), event.Currency),
		ReferenceID: sub.ID,
	})
	return nil
}

// applyInvoicePaid renews the account's current paid tier for another period.
func (a *Adapter) applyInvoicePaid(event *Event) error {
	sub, err := a.repos.Subscription.GetByUserID(event.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.ErrSubscriptionNotFound
		}
		return err
	}
	if sub.Tier == models.TierTrial || sub.Tier == models.TierBasic {
		log.Warnf("[Payment] invoice %s for user %d on %s tier, nothing to renew", event.ID, event.UserID, sub.Tier)
		return nil
	}

	credits := event.Credits
	if credits == 0 {
		plan, err := a.repos.Plan.GetActiveByTier(sub.Tier, nil, nil)
		if err != nil {
			return fmt.Errorf("resolve plan for renewal %s: %w", sub.Tier, err)
		}
		credits = plan.Credits
	}

	now := event.OccurredAt
	if now.IsZero() {
		now = time.Now()
	}

	renewed, err := a.activator.ActivatePaid(subscription.ActivationInput{
		UserID:         event.UserID,
		Tier:           sub.Tier,
		Credits:        credits,
		Price:          event.FinalPrice,
		GatewayEventID: event.ID,
		Now:            now,
	})
	if err != nil {
		return err
	}

	a.writeInvoice(event, renewed)
	a.enqueue(notify.Message{
		Kind:        notify.KindPaymentConfirmed,
		UserID:      event.UserID,
		Title:       "Abo verlängert",
		Body:        fmt.Sprintf("Dein %s Abo wurde verlängert.", renewed.Tier),
		ReferenceID: renewed.ID,
	})
	return nil
}

// writeInvoice records the settled charge. Best effort after the activation
// committed; failures are logged, never surfaced.
func (a *Adapter) writeInvoice(event *Event, sub *models.Subscription) {
	if event.AmountCents <= 0 {
		return
	}
	inv := &models.Invoice{
		InvoiceNumber:     fmt.Sprintf("JF-%d-%s", time.Now().Year(), strings.ToUpper(uuid.New().String()[:8])),
		UserID:            event.UserID,
		SubscriptionID:    sub.ID,
		AmountCents:       event.AmountCents,
		Currency:          firstNonEmpty(event.Currency, "EUR"),
		Status:            models.InvoiceStatusPaid,
		GatewayPaymentRef: event.PaymentRef,
	}
	if err := a.repos.Invoice.Create(inv); err != nil {
		log.Errorf("[Payment] invoice for event %s: %v", event.ID, err)
	}
}

func (a *Adapter) enqueue(msg notify.Message) {
	if a.notifier == nil {
		return
	}
	a.notifier.Enqueue(msg)
}
