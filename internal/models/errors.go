package models

import "errors"

// Common errors used throughout the application
var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrPriceTierNotFound  = errors.New("price tier not found")
	ErrCartItemNotFound   = errors.New("cart item not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEntry     = errors.New("duplicate entry")

	ErrInvalidQuantity   = errors.New("quantity must be between 1 and 10")
	ErrEventNotOnSale    = errors.New("event is not on sale")
	ErrSalesClosed       = errors.New("ticket sales are closed for this ticket type")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrMultipleEvents    = errors.New("cart contains tickets for more than one event")
	ErrInsufficientStock = errors.New("insufficient ticket stock")

	// ErrOversold means a confirmation lost the race for the last units.
	// The order stays pending and needs manual reconciliation.
	ErrOversold = errors.New("ticket type sold out while confirming order")

	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrPendingOrderExists    = errors.New("a pending order already exists for this buyer")
	ErrOrderExpired          = errors.New("order has expired")
	ErrAlreadyConfirmed      = errors.New("order already confirmed")
	ErrPaymentAmountMismatch = errors.New("paid amount does not match order total")
	ErrNoPaymentSession      = errors.New("order has no payment session")
	ErrInvalidAttendees      = errors.New("attendee details do not match order items")

	ErrPromotionNotFound      = errors.New("promotion not found")
	ErrPromotionNotApplicable = errors.New("promotion is not valid for this order")
	ErrPromotionExhausted     = errors.New("promotion has reached its redemption limit")
	ErrVoucherInvalid         = errors.New("voucher code is invalid")
)
