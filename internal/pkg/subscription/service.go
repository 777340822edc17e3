package subscription

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/credits"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/notify"
)

// Trial scope slots granted at provisioning. The provider binds concrete
// categories/regions to them later; billing only tracks the entitlement.
const (
	trialCategorySlots = 2
	trialRegionSlots   = 1
)

// Service is the subscription state machine. Every transition runs in one
// transaction holding the FOR UPDATE lock on the subscription row and writes
// exactly one history entry atomically with the state and ledger mutation.
type Service struct {
	store    Store
	notifier Notifier
}

// NewService creates the state machine service. notifier may be nil in tests.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// NewServiceFromDB creates the state machine service on a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, notifier Notifier) *Service {
	return NewService(NewStore(db), notifier)
}

// EnsureSubscription returns the account's subscription, provisioning the
// TRIAL lazily on first access. An already-lapsed subscription is expired on
// the way out, same transition the reconciler runs.
func (s *Service) EnsureSubscription(user *models.User, now time.Time) (*models.Subscription, error) {
	if !user.IsProviderAccount() {
		return nil, billing.ErrNotProviderAccount
	}

	sub, err := s.store.Repos().Subscription.GetByUserID(user.ID)
	if err == nil {
		if sub.IsLapsed(now) {
			expired, _, eerr := s.Expire(user.ID, now)
			if eerr != nil {
				log.Errorf("[Subscription] opportunistic expire for user %d failed: %v", user.ID, eerr)
				return sub, nil
			}
			return expired, nil
		}
		return sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sub, err = s.provisionTrial(user, now)
	if err != nil {
		return nil, err
	}

	s.enqueue(notify.Message{
		Kind:   notify.KindWelcome,
		UserID: user.ID,
		Email:  user.Email,
		Title:  "Willkommen bei JobFuchs",
		Body:   fmt.Sprintf("Dein Testzeitraum läuft bis %s. Du startest mit %d Credits.", sub.ExpiresAt.Format("02.01.2006"), models.TrialCredits),
	})
	return sub, nil
}

func (s *Service) provisionTrial(user *models.User, now time.Time) (*models.Subscription, error) {
	var sub *models.Subscription

	err := s.store.Transaction(func(repos *repository.Repositories) error {
		expires := now.AddDate(0, 0, models.TrialDays)
		sub = &models.Subscription{
			UserID:        user.ID,
			Tier:          models.TierTrial,
			Status:        models.SubscriptionStatusActive,
			CreditBalance: 0,
			ExpiresAt:     &expires,
		}
		if err := repos.Subscription.Create(sub); err != nil {
			return err
		}

		if err := credits.ApplyGrant(repos, sub, models.TrialCredits, "trial provisioning", models.TierTrial, nil); err != nil {
			return err
		}
		if err := repos.Subscription.Save(sub); err != nil {
			return err
		}

		grace := expires.AddDate(0, 0, models.AddonGraceDays)
		for i := 0; i < trialCategorySlots; i++ {
			grant := &models.AddonGrant{
				UserID:      user.ID,
				Type:        models.AddonTypeCategory,
				DisplayName: fmt.Sprintf("Trial category slot %d", i+1),
				ValidUntil:  expires,
				GraceUntil:  grace,
				Status:      models.AddonStatusActive,
			}
			if err := repos.Addon.Create(grant); err != nil {
				return err
			}
		}
		for i := 0; i < trialRegionSlots; i++ {
			grant := &models.AddonGrant{
				UserID:      user.ID,
				Type:        models.AddonTypeRegion,
				DisplayName: "Trial region slot",
				ValidUntil:  expires,
				GraceUntil:  grace,
				Status:      models.AddonStatusActive,
			}
			if err := repos.Addon.Create(grant); err != nil {
				return err
			}
		}

		if err := repos.TrialEngagement.Create(&models.TrialEngagement{
			UserID:         user.ID,
			SubscriptionID: sub.ID,
		}); err != nil {
			return err
		}

		return repos.History.Append(&models.SubscriptionHistory{
			SubscriptionID: sub.ID,
			UserID:         user.ID,
			Action:         models.ActionCreated,
			NewTier:        models.TierTrial,
			NewStatus:      models.SubscriptionStatusActive,
			CreditsAdded:   intPtr(models.TrialCredits),
			CreditsBefore:  0,
			CreditsAfter:   sub.CreditBalance,
			ValidFrom:      &now,
			ValidUntil:     sub.ExpiresAt,
			Reason:         "trial provisioning",
		})
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Subscription] provisioned trial for user %d, expires %s", user.ID, sub.ExpiresAt.Format(time.RFC3339))
	return sub, nil
}

// ActivatePaid applies a confirmed payment: tier change, additive credits,
// history entry, all atomic. Mid-cycle paid switches keep the expiry anchor;
// renewals extend it.
func (s *Service) ActivatePaid(in ActivationInput) (*models.Subscription, error) {
	tier := billing.NormalizeTier(in.Tier)
	if tier == "" || tier == models.TierTrial {
		return nil, fmt.Errorf("%w: cannot activate tier %q", billing.ErrValidation, in.Tier)
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	var result *models.Subscription
	err := s.store.WithLockedSubscription(in.UserID, func(repos *repository.Repositories, sub *models.Subscription) error {
		action := billing.ActionForChange(sub.Tier, tier)
		prevTier, prevStatus, prevExpires := sub.Tier, sub.Status, sub.ExpiresAt
		creditsBefore := sub.CreditBalance

		expires := nextExpiry(sub, tier, action, now)

		var eventID *string
		if in.GatewayEventID != "" {
			eventID = &in.GatewayEventID
		}

		reason := fmt.Sprintf("%s activation", strings.ToLower(tier))
		var creditsAdded *int
		if in.Credits == models.CreditsUnlimited {
			if err := credits.ApplyEnterUnlimited(repos, sub, reason, tier, eventID); err != nil {
				return err
			}
		} else {
			creditsAdded = intPtr(in.Credits)
			if sub.HasUnlimitedCredits() {
				// Leaving PRO: rebaseline instead of stacking on the sentinel.
				if err := credits.ApplyAdjustTo(repos, sub, in.Credits, reason, tier, eventID); err != nil {
					return err
				}
			} else if err := credits.ApplyGrant(repos, sub, in.Credits, reason, tier, eventID); err != nil {
				return err
			}
		}

		sub.Tier = tier
		sub.Status = models.SubscriptionStatusActive
		sub.ExpiresAt = &expires
		sub.CancelledAt = nil
		result = sub

		return repos.History.Append(&models.SubscriptionHistory{
			SubscriptionID:    sub.ID,
			UserID:            sub.UserID,
			Action:            action,
			PreviousTier:      &prevTier,
			NewTier:           tier,
			PreviousStatus:    &prevStatus,
			NewStatus:         sub.Status,
			Price:             &in.Price,
			ProratedAmount:    in.ProratedAmount,
			DiscountType:      in.DiscountType,
			DiscountAmount:    in.DiscountAmount,
			CreditsAdded:      creditsAdded,
			CreditsBefore:     creditsBefore,
			CreditsAfter:      sub.CreditBalance,
			ValidFrom:         &now,
			ValidUntil:        sub.ExpiresAt,
			PreviousExpiresAt: prevExpires,
			Reason:            reason,
			GatewayEventID:    eventID,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Subscription] activated %s for user %d (event %s)", tier, in.UserID, in.GatewayEventID)
	return result, nil
}

// nextExpiry decides the validity window for a paid activation. A running
// paid subscription switching tiers keeps its anchor (the switch was priced
// by proration); a renewal extends from the current anchor.
func nextExpiry(sub *models.Subscription, newTier, action string, now time.Time) time.Time {
	if sub.IsActivePaid(now) && sub.Tier != newTier {
		return *sub.ExpiresAt
	}
	if action == models.ActionRenewed && sub.Status == models.SubscriptionStatusActive &&
		sub.ExpiresAt != nil && sub.ExpiresAt.After(now) {
		return sub.ExpiresAt.AddDate(0, 1, 0)
	}
	return now.AddDate(0, 1, 0)
}

// Cancel ends the subscription on user request. Trials and BASIC freeze in
// place; paid tiers drop to the BASIC fallback immediately, keeping earned
// credits plus the fixed BASIC grant.
func (s *Service) Cancel(userID uint, actor *uint, now time.Time) (*models.Subscription, error) {
	var result *models.Subscription
	var kind string

	err := s.store.WithLockedSubscription(userID, func(repos *repository.Repositories, sub *models.Subscription) error {
		if sub.Status != models.SubscriptionStatusActive {
			return fmt.Errorf("%w: subscription is not active", billing.ErrValidation)
		}

		prevTier, prevStatus, prevExpires := sub.Tier, sub.Status, sub.ExpiresAt
		creditsBefore := sub.CreditBalance
		sub.CancelledAt = &now

		entry := &models.SubscriptionHistory{
			SubscriptionID:    sub.ID,
			UserID:            sub.UserID,
			Action:            models.ActionCancelled,
			PreviousTier:      &prevTier,
			PreviousStatus:    &prevStatus,
			CreditsBefore:     creditsBefore,
			PreviousExpiresAt: prevExpires,
			ChangedBy:         actor,
		}

		switch sub.Tier {
		case models.TierTrial, models.TierBasic:
			// Balance stays frozen at whatever is left.
			sub.Status = models.SubscriptionStatusCancelled
			entry.Reason = "cancelled by user"
			kind = "frozen"
		default:
			// Paid plans fall back to BASIC for one more month.
			if err := applyBasicFallbackCredits(repos, sub, "cancellation fallback"); err != nil {
				return err
			}
			expires := now.AddDate(0, 1, 0)
			sub.Tier = models.TierBasic
			sub.Status = models.SubscriptionStatusActive
			sub.ExpiresAt = &expires
			entry.ValidFrom = &now
			entry.ValidUntil = sub.ExpiresAt
			entry.Reason = "cancelled by user, downgraded to basic"
			kind = "fallback"
		}

		entry.NewTier = sub.Tier
		entry.NewStatus = sub.Status
		entry.CreditsAfter = sub.CreditBalance
		result = sub
		return repos.History.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Subscription] cancelled user %d (%s)", userID, kind)
	s.enqueue(notify.Message{
		Kind:   notify.KindCancellation,
		UserID: userID,
		Title:  "Abo gekündigt",
		Body:   "Deine Kündigung wurde verarbeitet.",
	})
	return result, nil
}

// Expire forces the lapsed-window transition for one account. It is
// idempotent: accounts that are not lapsed, already BASIC or frozen by a
// cancel come back unchanged.
func (s *Service) Expire(userID uint, now time.Time) (*models.Subscription, bool, error) {
	var result *models.Subscription
	changed := false

	err := s.store.WithLockedSubscription(userID, func(repos *repository.Repositories, sub *models.Subscription) error {
		result = sub
		if !sub.IsLapsed(now) || sub.Tier == models.TierBasic {
			return nil
		}
		if sub.Status == models.SubscriptionStatusCancelled {
			return nil
		}

		prevTier, prevStatus, prevExpires := sub.Tier, sub.Status, sub.ExpiresAt
		creditsBefore := sub.CreditBalance

		if prevTier == models.TierTrial {
			// Trial credits do not survive expiry; reset to the BASIC grant.
			if err := credits.ApplyAdjustTo(repos, sub, models.BasicCredits, "trial expired", models.TierBasic, nil); err != nil {
				return err
			}
		} else if err := applyBasicFallbackCredits(repos, sub, "subscription expired"); err != nil {
			return err
		}

		expires := now.AddDate(0, 1, 0)
		sub.Tier = models.TierBasic
		sub.Status = models.SubscriptionStatusActive
		sub.ExpiresAt = &expires
		changed = true

		return repos.History.Append(&models.SubscriptionHistory{
			SubscriptionID:    sub.ID,
			UserID:            sub.UserID,
			Action:            models.ActionExpired,
			PreviousTier:      &prevTier,
			NewTier:           sub.Tier,
			PreviousStatus:    &prevStatus,
			NewStatus:         sub.Status,
			CreditsBefore:     creditsBefore,
			CreditsAfter:      sub.CreditBalance,
			ValidFrom:         &now,
			ValidUntil:        sub.ExpiresAt,
			PreviousExpiresAt: prevExpires,
			Reason:            fmt.Sprintf("%s expired, downgraded to basic", strings.ToLower(prevTier)),
		})
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		log.Infof("[Subscription] expired user %d, downgraded to BASIC", userID)
		s.enqueue(notify.Message{
			Kind:   notify.KindExpiryDowngrade,
			UserID: userID,
			Title:  "Abo abgelaufen",
			Body:   fmt.Sprintf("Dein Abo ist abgelaufen. Du bist jetzt im BASIC-Tarif mit %d Credits pro Monat.", models.BasicCredits),
		})
	}
	return result, changed, nil
}

// applyBasicFallbackCredits moves a paid balance onto the BASIC footing:
// metered balances keep what they have plus the fixed grant, the unlimited
// sentinel rebaselines to the grant alone.
func applyBasicFallbackCredits(repos *repository.Repositories, sub *models.Subscription, reason string) error {
	if sub.HasUnlimitedCredits() {
		return credits.ApplyAdjustTo(repos, sub, models.BasicCredits, reason, models.TierBasic, nil)
	}
	return credits.ApplyGrant(repos, sub, models.BasicCredits, reason, models.TierBasic, nil)
}

// History returns the account's audit trail, newest first.
func (s *Service) History(userID uint, filter repository.HistoryFilter) ([]models.SubscriptionHistory, error) {
	return s.store.Repos().History.List(userID, filter)
}

// Addons returns the account's addon grants that still cover scope.
func (s *Service) Addons(userID uint, now time.Time) ([]models.AddonGrant, error) {
	return s.store.Repos().Addon.ListActiveByUser(userID, now)
}

func (s *Service) enqueue(msg notify.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(msg)
}

func intPtr(v int) *int { return &v }
