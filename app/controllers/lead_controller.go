package controllers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/credits"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/database"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/trial"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/usercontext"
)

type purchaseLeadRequest struct {
	JobID uint `json:"job_id" validate:"required,gt=0"`
}

// HandlePurchaseLead spends one credit to unlock a job lead. Unlimited
// accounts pass through without touching the balance.
func HandlePurchaseLead(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req purchaseLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid lead request: "+err.Error())
	}

	jobID := req.JobID
	sub, err := credits.NewService(database.GetDB()).
		Deduct(userCtx.UserID, "lead purchase", &jobID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInsufficientCredits):
			return jsonError(c, fiber.StatusPaymentRequired, "insufficient_credits", "Not enough credits, upgrade your plan")
		case errors.Is(err, billing.ErrSubscriptionNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", "No subscription")
		case errors.Is(err, billing.ErrConcurrentModification):
			return jsonError(c, fiber.StatusConflict, "conflict", "Balance is being modified, try again")
		default:
			log.Errorf("[Credits] deduct for user %d job %d: %v", userCtx.UserID, jobID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lead purchase failed")
		}
	}

	// Engagement is a side channel, never part of the purchase outcome.
	if err := trial.NewTrackerFromDB().Track(userCtx.UserID, trial.MetricLeadsPurchased, 1, time.Now()); err != nil {
		log.Warnf("[Trial] track lead purchase for user %d: %v", userCtx.UserID, err)
	}

	return c.JSON(fiber.Map{
		"job_id":    jobID,
		"balance":   sub.CreditBalance,
		"unlimited": sub.HasUnlimitedCredits(),
	})
}
