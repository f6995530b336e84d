package core

import "errors"

var (
	// ErrEmptyCart rejects checkout before any write happens.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidLineItem rejects carts with malformed entries.
	ErrInvalidLineItem = errors.New("invalid cart line item")
	// ErrInvalidTransition means the requested status is not reachable
	// from the current one; the order is left unchanged.
	ErrInvalidTransition = errors.New("illegal status transition")
	// ErrConflict means another writer advanced the order first; the
	// caller should re-read and retry.
	ErrConflict = errors.New("order already advanced by another writer")
	// ErrForbidden means the acting role may not trigger the transition.
	ErrForbidden = errors.New("role not allowed to trigger transition")
	// ErrPickupCodeExhausted means bounded code generation ran out of
	// attempts even after widening the code space.
	ErrPickupCodeExhausted = errors.New("pickup code space exhausted")

	ErrOrderNotFound = errors.New("order not found")

	ErrDBConn = errors.New("db connection failure")
)
