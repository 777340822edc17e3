package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/database"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/subscription"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/trial"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/usercontext"
)

// appNotifier is the notification sink shared by all controllers; main wires
// the dispatcher in at startup. Nil means notifications are dropped.
var appNotifier subscription.Notifier

func SetNotifier(n subscription.Notifier) {
	appNotifier = n
}

func subscriptionService() *subscription.Service {
	return subscription.NewServiceFromDB(database.GetDB(), appNotifier)
}

// HandleGetSubscription returns the caller's subscription, provisioning the
// trial on first access.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	now := time.Now()
	svc := subscriptionService()
	sub, err := svc.EnsureSubscription(user, now)
	if err != nil {
		if errors.Is(err, billing.ErrNotProviderAccount) {
			return jsonError(c, fiber.StatusForbidden, "forbidden", "Provider account required")
		}
		log.Errorf("[Subscription] ensure for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription")
	}

	addons, err := svc.Addons(userCtx.UserID, now)
	if err != nil {
		log.Warnf("[Subscription] addons for user %d: %v", userCtx.UserID, err)
	}

	return c.JSON(fiber.Map{
		"subscription": sub,
		"unlimited":    sub.HasUnlimitedCredits(),
		"addons":       addons,
	})
}

// HandleListPlans returns the plan catalog priced for the caller.
func HandleListPlans(c *fiber.Ctx) error {
	categoryID, region := parseScopeQuery(c)

	plans, err := billing.NewServiceFromDB(database.GetDB()).
		PlansForUser(usercontext.GetUserID(c), categoryID, region, time.Now())
	if err != nil {
		log.Errorf("[Billing] list plans: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load plans")
	}
	return c.JSON(fiber.Map{"plans": plans})
}

type checkoutRequest struct {
	Tier       string  `json:"tier" validate:"required,oneof=BASIC PREMIUM PRO basic premium pro"`
	CategoryID *uint   `json:"category_id" validate:"omitempty,gt=0"`
	Region     *string `json:"region" validate:"omitempty,min=2,max=100"`
}

// HandleCheckout quotes the requested tier and opens a gateway checkout
// session for it. The quoted price is frozen into the session; the webhook
// applies it unchanged.
func HandleCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid checkout request: "+err.Error())
	}

	quote, err := billing.NewServiceFromDB(database.GetDB()).
		QuoteCheckout(userCtx.UserID, req.Tier, req.CategoryID, req.Region, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrValidation), errors.Is(err, billing.ErrTierNotPurchasable):
			return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, billing.ErrPlanNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", "No active plan for this tier")
		default:
			log.Errorf("[Billing] quote checkout for user %d: %v", userCtx.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to prepare checkout")
		}
	}

	session, err := paymentClient().CreateCheckoutSession(c.Context(), userCtx.UserID, quote)
	if err != nil {
		log.Errorf("[Billing] checkout session for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "gateway_error", "Payment gateway unavailable")
	}

	return c.JSON(fiber.Map{
		"quote":        quote,
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}

// HandleCancelSubscription cancels the caller's subscription.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	actor := userCtx.UserID

	sub, err := subscriptionService().Cancel(userCtx.UserID, &actor, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrSubscriptionNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", "No subscription to cancel")
		case errors.Is(err, billing.ErrValidation):
			return jsonError(c, fiber.StatusConflict, "conflict", "Subscription is not active")
		case errors.Is(err, billing.ErrConcurrentModification):
			return jsonError(c, fiber.StatusConflict, "conflict", "Subscription is being modified, try again")
		default:
			log.Errorf("[Subscription] cancel for user %d: %v", userCtx.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to cancel subscription")
		}
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// HandleSubscriptionHistory returns the caller's lifecycle history, newest
// first, with optional action/tier filters.
func HandleSubscriptionHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	limit, offset := parsePagination(c, 25, 100)

	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	filter := repository.HistoryFilter{
		Action: strings.ToUpper(strings.TrimSpace(c.Query("action"))),
		Tier:   strings.ToUpper(strings.TrimSpace(c.Query("tier"))),
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	}

	entries, err := subscriptionService().History(userCtx.UserID, filter)
	if err != nil {
		log.Errorf("[Subscription] history for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load history")
	}

	total, err := repository.GetGlobalRepositories().History.CountByUser(userCtx.UserID)
	if err != nil {
		log.Warnf("[Subscription] history count for user %d: %v", userCtx.UserID, err)
	}

	return c.JSON(fiber.Map{
		"history": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleCreditLedger returns the caller's balance and recent ledger entries.
func HandleCreditLedger(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	limit, offset := parsePagination(c, 25, 100)

	repos := repository.GetGlobalRepositories()
	sub, err := repos.Subscription.GetByUserID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No subscription")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription")
	}

	kind := strings.ToUpper(strings.TrimSpace(c.Query("kind")))
	entries, err := repos.Ledger.ListByUser(userCtx.UserID, kind, limit, offset)
	if err != nil {
		log.Errorf("[Credits] ledger for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load ledger")
	}

	return c.JSON(fiber.Map{
		"balance":      sub.CreditBalance,
		"unlimited":    sub.HasUnlimitedCredits(),
		"transactions": entries,
		"limit":        limit,
		"offset":       offset,
	})
}

// HandleGetTrialEngagement returns the caller's trial engagement counters.
func HandleGetTrialEngagement(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	snap, err := trial.NewTrackerFromDB().Snapshot(userCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No trial engagement recorded")
		}
		log.Errorf("[Trial] engagement for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load engagement")
	}
	return c.JSON(fiber.Map{"engagement": snap})
}

type engagementRequest struct {
	Metric string `json:"metric" validate:"required"`
	Delta  int    `json:"delta" validate:"required,gt=0"`
}

// HandleTrackEngagement records one engagement event. Outside an active
// trial the call is accepted and dropped.
func HandleTrackEngagement(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req engagementRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid engagement request: "+err.Error())
	}

	if err := trial.NewTrackerFromDB().Track(userCtx.UserID, req.Metric, req.Delta, time.Now()); err != nil {
		if errors.Is(err, billing.ErrValidation) {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
		}
		log.Errorf("[Trial] track %s for user %d: %v", req.Metric, userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to record engagement")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
