package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/payment"
)

func paymentClient() *payment.Client {
	return payment.NewClientFromEnv()
}

// HandlePaymentWebhook receives gateway events. The raw body is verified
// against the signature header before anything is parsed; duplicates are
// acknowledged without reprocessing.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	client := paymentClient()
	adapter := payment.NewAdapter(
		repository.GetGlobalRepositories(),
		subscriptionService(),
		appNotifier,
		client.WebhookSecret,
	)

	err := adapter.HandleWebhook(c.Body(), c.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"received": true})
	case errors.Is(err, billing.ErrAlreadyApplied):
		// Acknowledge replays so the gateway stops retrying.
		return c.JSON(fiber.Map{"received": true, "duplicate": true})
	case errors.Is(err, billing.ErrInvalidSignature):
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
	case errors.Is(err, billing.ErrUnknownEventType), errors.Is(err, billing.ErrValidation):
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	default:
		log.Errorf("[Payment] webhook processing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Webhook processing failed")
	}
}

// HandlePaymentConfig exposes the publishable gateway key to the frontend.
func HandlePaymentConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"publishable_key": paymentClient().PublishableKey})
}
