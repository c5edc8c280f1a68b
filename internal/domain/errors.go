package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Validation errors
	ErrMsgValidation = "validation failed"

	// Transaction errors
	ErrMsgInsufficientFunds = "insufficient funds"
	ErrMsgInsufficientStock = "insufficient stock"
	ErrMsgShopCannotAfford  = "shop cannot afford"

	// Lookup errors
	ErrMsgNotFound = "not found"

	// Persistence errors
	ErrMsgPersistence = "persistence failure"

	// Lifecycle errors
	ErrMsgShopLimitReached = "shop limit reached"
	ErrMsgShopExpired      = "shop is expired"

	// Conversation errors
	ErrMsgUnknownAction = "unknown pending action"
)

// Common domain errors
// These errors should be used consistently across all layers of the application.
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	// ErrValidation covers bad field bounds: name/description length,
	// price outside [PriceMin, PriceMax], currency not in the allowed set.
	ErrValidation = errors.New(ErrMsgValidation)

	// Transaction errors
	ErrInsufficientFunds = errors.New(ErrMsgInsufficientFunds)
	ErrInsufficientStock = errors.New(ErrMsgInsufficientStock)
	ErrShopCannotAfford  = errors.New(ErrMsgShopCannotAfford)

	// Lookup errors
	ErrNotFound = errors.New(ErrMsgNotFound)

	// Persistence errors
	ErrPersistence = errors.New(ErrMsgPersistence)

	// Lifecycle errors
	ErrShopLimitReached = errors.New(ErrMsgShopLimitReached)
	ErrShopExpired      = errors.New(ErrMsgShopExpired)

	// Conversation errors
	ErrUnknownAction = errors.New(ErrMsgUnknownAction)
)
