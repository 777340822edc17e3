package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/JobFuchs/app/controllers"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/constants"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "JobFuchs API",
		})
	})

	v1 := api.Group("/v1")

	// Public routes. The webhook authenticates via its signature, not a key.
	v1.Post("/auth/register", controllers.HandleRegister)
	v1.Get("/plans", controllers.HandleListPlans)
	v1.Post(constants.WebhookRoute, controllers.HandlePaymentWebhook)
	v1.Get("/payments/config", controllers.HandlePaymentConfig)

	authed := v1.Group("", middleware.APIKeyAuthMiddleware())
	authed.Get("/account", controllers.HandleGetAccount)
	authed.Post("/account/api-key/rotate", controllers.HandleRotateAPIKey)

	// Subscriptions exist for provider accounts only.
	provider := authed.Group("", middleware.RequireProvider)
	provider.Get("/subscription", controllers.HandleGetSubscription)
	provider.Get("/subscription/plans", controllers.HandleListPlans)
	provider.Post("/subscription/checkout", controllers.HandleCheckout)
	provider.Post("/subscription/cancel", controllers.HandleCancelSubscription)
	provider.Get("/subscription/history", controllers.HandleSubscriptionHistory)
	provider.Get("/subscription/credits", controllers.HandleCreditLedger)
	provider.Get("/subscription/trial/engagement", controllers.HandleGetTrialEngagement)
	provider.Post("/subscription/trial/engagement", controllers.HandleTrackEngagement)
	provider.Post("/leads/purchase", controllers.HandlePurchaseLead)

	admin := authed.Group("/admin", middleware.RequireAdmin)
	admin.Post("/users/:id/credits/grant", controllers.HandleAdminGrantCredits)
	admin.Post("/users/:id/credits/refund", controllers.HandleAdminRefundCredits)
	admin.Get("/users/:id/credits/replay", controllers.HandleAdminReplayLedger)
	admin.Post("/sweep", controllers.HandleAdminRunSweep)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
