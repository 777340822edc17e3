package billing

import "errors"

// Typed sentinels shared by the pricing, credits, subscription and payment
// packages. Controllers map them to HTTP status codes.
var (
	// ErrValidation covers malformed input: unknown tier, bad scope, missing
	// fields.
	ErrValidation = errors.New("validation failed")

	// ErrNotProviderAccount is returned when a non-provider account touches
	// subscription operations.
	ErrNotProviderAccount = errors.New("account is not a provider account")

	// ErrPlanNotFound is returned when no active catalog plan exists for the
	// requested tier and scope.
	ErrPlanNotFound = errors.New("no active plan for tier")

	// ErrTierNotPurchasable is returned for checkout attempts on TRIAL.
	ErrTierNotPurchasable = errors.New("tier cannot be purchased")

	// ErrSubscriptionNotFound is returned when an operation requires an
	// existing subscription row.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInsufficientCredits is returned by deduction at zero balance. The
	// operation leaves no state change behind.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrConcurrentModification is returned after the single lock retry also
	// failed.
	ErrConcurrentModification = errors.New("concurrent subscription modification")

	// ErrInvalidSignature is returned for webhook payloads whose signature
	// does not verify. No state change.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrUnknownEventType is returned for webhook event kinds outside the
	// supported set.
	ErrUnknownEventType = errors.New("unknown webhook event type")

	// ErrAlreadyApplied marks a duplicate gateway event. Callers treat it as
	// success without side effects.
	ErrAlreadyApplied = errors.New("event already applied")
)
