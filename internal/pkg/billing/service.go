package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/cache"
)

const planCacheTTL = 5 * time.Minute

// Service prices checkouts and serves the plan catalog. It never mutates
// subscription state; that is the state machine's job.
type Service struct {
	repos *repository.Repositories
}

// NewService creates a pricing service from injected repositories.
func NewService(repos *repository.Repositories) *Service {
	return &Service{repos: repos}
}

// NewServiceFromDB creates a pricing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(repository.NewRepositories(db))
}

// QuoteCheckout computes the frozen price for buying the target tier. The
// precedence is fixed: proration for mid-cycle paid switches, otherwise at
// most one 20% discount (trial-upgrade before new-account), otherwise list
// price.
func (s *Service) QuoteCheckout(userID uint, tier string, categoryID *uint, region *string, now time.Time) (*CheckoutQuote, error) {
	target := NormalizeTier(tier)
	if target == "" {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrValidation, tier)
	}
	if target == models.TierTrial {
		return nil, ErrTierNotPurchasable
	}

	plan, err := s.repos.Plan.GetActiveByTier(target, categoryID, region)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	sub, err := s.repos.Subscription.GetByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		sub = nil
	}

	currentTier := models.TierTrial
	if sub != nil {
		currentTier = sub.Tier
	}

	quote := &CheckoutQuote{
		PlanID:    plan.ID,
		Tier:      target,
		Action:    ActionForChange(currentTier, target),
		Credits:   plan.Credits,
		Currency:  plan.Currency,
		BasePrice: plan.Price,
		QuotedAt:  now,
	}

	if sub != nil && sub.IsActivePaid(now) && sub.Tier != target {
		oldPlan, err := s.repos.Plan.GetActiveByTier(sub.Tier, categoryID, region)
		if err != nil {
			return nil, fmt.Errorf("resolve current plan %s: %w", sub.Tier, err)
		}
		p := ComputeProration(oldPlan.Price, plan.Price, *sub.ExpiresAt, now)
		quote.Prorated = true
		quote.ProratedDays = p.DaysRemaining
		quote.ProrationDelta = p.Delta
		quote.PreservedExpiry = sub.ExpiresAt
		quote.FinalPrice = p.Charge
		return quote, nil
	}

	hasPaid, err := s.hasPaidHistory(userID)
	if err != nil {
		return nil, err
	}

	if dtype := ResolveDiscount(sub, hasPaid, now); dtype != "" {
		discounted, amount := ApplyDiscount(plan.Price)
		quote.DiscountType = dtype
		quote.DiscountAmount = amount
		quote.FinalPrice = discounted
		return quote, nil
	}

	quote.FinalPrice = plan.Price
	return quote, nil
}

// hasPaidHistory reports whether the account ever completed a paid purchase.
// Both the ledger and the invoice table count, whichever answers first.
func (s *Service) hasPaidHistory(userID uint) (bool, error) {
	paid, err := s.repos.Ledger.HasPaidGrant(userID)
	if err != nil {
		return false, err
	}
	if paid {
		return true, nil
	}
	return s.repos.Invoice.HasPaid(userID)
}

// PlansForUser resolves the caller's subscription and purchase history, then
// returns the catalog priced for them. A zero userID yields the undiscounted
// catalog.
func (s *Service) PlansForUser(userID uint, categoryID *uint, region *string, now time.Time) ([]PlanView, error) {
	var sub *models.Subscription
	hasPaid := false
	if userID != 0 {
		loaded, err := s.repos.Subscription.GetByUserID(userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		sub = loaded
		if sub != nil {
			if hasPaid, err = s.hasPaidHistory(userID); err != nil {
				return nil, err
			}
		}
	}
	return s.ListPlans(sub, hasPaid, categoryID, region, now)
}

// ListPlans returns the catalog for display. When a subscription is given,
// paid plans carry the caller's discounted price; proration is not previewed
// here.
func (s *Service) ListPlans(sub *models.Subscription, hasPaidHistory bool, categoryID *uint, region *string, now time.Time) ([]PlanView, error) {
	plans, err := s.loadPlans(categoryID, region)
	if err != nil {
		return nil, err
	}

	dtype := ""
	if sub != nil {
		dtype = ResolveDiscount(sub, hasPaidHistory, now)
	}

	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		view := PlanView{
			ID:          p.ID,
			Tier:        p.Tier,
			DisplayName: p.DisplayName,
			Description: p.Description,
			Price:       p.Price,
			Currency:    p.Currency,
			Credits:     p.Credits,
			IsPopular:   p.IsPopular,
		}
		if dtype != "" && IsPaidTier(p.Tier) && !p.IsFree() {
			discounted, _ := ApplyDiscount(p.Price)
			view.DiscountedPrice = &discounted
			view.DiscountType = dtype
		}
		views = append(views, view)
	}
	return views, nil
}

// loadPlans reads the catalog through a short-lived Redis cache. Cache
// failures fall through to the database.
func (s *Service) loadPlans(categoryID *uint, region *string) ([]models.SubscriptionPlan, error) {
	key := planCacheKey(categoryID, region)
	if raw, err := cache.Get(key); err == nil && raw != "" {
		var plans []models.SubscriptionPlan
		if err := json.Unmarshal([]byte(raw), &plans); err == nil {
			return plans, nil
		}
	}

	plans, err := s.repos.Plan.ListActive(categoryID, region)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(plans); err == nil {
		if err := cache.Set(key, string(raw), planCacheTTL); err != nil {
			log.Warnf("[Billing] plan cache write failed: %v", err)
		}
	}
	return plans, nil
}

func planCacheKey(categoryID *uint, region *string) string {
	cat := "global"
	if categoryID != nil {
		cat = fmt.Sprintf("%d", *categoryID)
	}
	reg := "global"
	if region != nil {
		reg = *region
	}
	return fmt.Sprintf("billing:plans:%s:%s", cat, reg)
}
