package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/env"
)

const defaultGatewayAPIBaseURL = "https://api.stripe.com"

// Client talks to the payment gateway's checkout API. The quoted price is
// frozen into session metadata so the webhook applies exactly what was
// quoted.
type Client struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string

	APIBaseURL string
	SuccessURL string
	CancelURL  string

	HTTPClient *http.Client
}

// CheckoutSession is the handle returned to the frontend.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func NewClientFromEnv() *Client {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(env.GetEnv("PAYMENT_SUCCESS_URL", ""))
	cancelURL := strings.TrimSpace(env.GetEnv("PAYMENT_CANCEL_URL", ""))
	if successURL == "" && base != "" {
		successURL = base + "/subscription/success"
	}
	if cancelURL == "" && base != "" {
		cancelURL = base + "/subscription/cancelled"
	}

	return &Client{
		SecretKey:      strings.TrimSpace(env.GetEnv("PAYMENT_SECRET_KEY", "")),
		PublishableKey: strings.TrimSpace(env.GetEnv("PAYMENT_PUBLISHABLE_KEY", "")),
		WebhookSecret:  strings.TrimSpace(env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")),
		APIBaseURL:     strings.TrimSpace(env.GetEnv("PAYMENT_API_BASE_URL", defaultGatewayAPIBaseURL)),
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession opens a gateway checkout for the quoted purchase.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID uint, quote *billing.CheckoutQuote) (*CheckoutSession, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errors.New("PAYMENT_SECRET_KEY is not configured")
	}
	if quote == nil {
		return nil, errors.New("checkout quote is required")
	}

	amountCents := quote.FinalPrice.Mul(centFactor).IntPart()

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", uuid.New().String())
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("line_items[0][price_data][currency]", strings.ToLower(quote.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("JobFuchs %s Abo", quote.Tier))
	form.Set("line_items[0][quantity]", "1")

	// The frozen pricing decision travels with the session; the webhook
	// handler reads it back instead of recomputing.
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))
	form.Set("metadata[plan_tier]", quote.Tier)
	form.Set("metadata[credits]", strconv.Itoa(quote.Credits))
	form.Set("metadata[action]", quote.Action)
	form.Set("metadata[final_price]", quote.FinalPrice.String())
	if quote.DiscountType != "" {
		form.Set("metadata[discount_type]", quote.DiscountType)
		form.Set("metadata[discount_amount]", quote.DiscountAmount.String())
	}
	if quote.Prorated {
		form.Set("metadata[prorated]", "true")
		form.Set("metadata[proration_delta]", quote.ProrationDelta.String())
		if quote.PreservedExpiry != nil {
			form.Set("metadata[preserved_expiry]", quote.PreservedExpiry.Format(time.RFC3339))
		}
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway checkout session failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out CheckoutSession
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("gateway returned empty session id")
	}
	return &out, nil
}
