package constants

// Static route constants
const (
	APIRoute   = "/api"
	APIV1Route = "/api/v1"

	// WebhookRoute is the gateway callback endpoint, relative to /api/v1.
	WebhookRoute = "/payments/webhook"
)
