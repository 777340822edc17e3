package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/credits"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/database"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/reconciler"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/usercontext"
)

// appReconciler lets the admin API trigger a manual sweep; main wires it in.
var appReconciler *reconciler.Reconciler

func SetReconciler(r *reconciler.Reconciler) {
	appReconciler = r
}

type adminCreditRequest struct {
	Amount int    `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

func adminTargetUserID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid user id")
	}
	return uint(id), nil
}

// HandleAdminGrantCredits adds credits to an account's balance.
func HandleAdminGrantCredits(c *fiber.Ctx) error {
	userID, err := adminTargetUserID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var req adminCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid grant request: "+err.Error())
	}

	sub, err := credits.NewService(database.GetDB()).Grant(userID, req.Amount, req.Reason)
	if err != nil {
		return adminCreditError(c, userID, "grant", err)
	}
	log.Infof("[Credits] admin %d granted %d credits to user %d", usercontext.GetUserID(c), req.Amount, userID)
	return c.JSON(fiber.Map{"balance": sub.CreditBalance, "unlimited": sub.HasUnlimitedCredits()})
}

// HandleAdminRefundCredits reverses previously deducted credits.
func HandleAdminRefundCredits(c *fiber.Ctx) error {
	userID, err := adminTargetUserID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	var req adminCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid refund request: "+err.Error())
	}

	sub, err := credits.NewService(database.GetDB()).Refund(userID, req.Amount, req.Reason)
	if err != nil {
		return adminCreditError(c, userID, "refund", err)
	}
	log.Infof("[Credits] admin %d refunded %d credits to user %d", usercontext.GetUserID(c), req.Amount, userID)
	return c.JSON(fiber.Map{"balance": sub.CreditBalance, "unlimited": sub.HasUnlimitedCredits()})
}

// HandleAdminReplayLedger audits one account: replays the full ledger and
// compares the result with the cached balance.
func HandleAdminReplayLedger(c *fiber.Ctx) error {
	userID, err := adminTargetUserID(c)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	sum, consistent, err := credits.NewService(database.GetDB()).Replay(userID)
	if err != nil {
		return adminCreditError(c, userID, "replay", err)
	}
	return c.JSON(fiber.Map{"ledger_sum": sum, "consistent": consistent})
}

// HandleAdminRunSweep triggers one reconciler pass outside the schedule.
func HandleAdminRunSweep(c *fiber.Ctx) error {
	if appReconciler == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Reconciler is not running")
	}

	result := appReconciler.RunOnce(time.Now())
	return c.JSON(fiber.Map{
		"scanned":        result.Scanned,
		"downgraded":     result.Downgraded,
		"failed":         result.Failed,
		"addons_expired": result.AddonsExpired,
		"reminders_sent": result.RemindersSent,
	})
}

func adminCreditError(c *fiber.Ctx, userID uint, op string, err error) error {
	switch {
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", "User has no subscription")
	case errors.Is(err, billing.ErrValidation):
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, billing.ErrConcurrentModification):
		return jsonError(c, fiber.StatusConflict, "conflict", "Balance is being modified, try again")
	default:
		log.Errorf("[Credits] admin %s for user %d: %v", op, userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Credit operation failed")
	}
}
