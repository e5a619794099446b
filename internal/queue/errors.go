package queue

import "errors"

var (
	// ErrQueueFull is returned when a shop's active ticket count has reached
	// the configured cap and the check-in does not resolve to an existing
	// ticket.
	ErrQueueFull = errors.New("queue full")

	// ErrInvalidTransition is returned for any lifecycle move the transition
	// table does not allow. Not retryable; the caller holds a stale view.
	ErrInvalidTransition = errors.New("invalid ticket transition")

	// ErrBarberUnavailable is returned when the target barber is missing,
	// belongs to another shop, or is not active and present.
	ErrBarberUnavailable = errors.New("barber unavailable")

	// ErrBusy is returned when the shop's critical section could not be
	// acquired within the configured timeout. Safe to retry with backoff.
	ErrBusy = errors.New("shop queue busy")

	// ErrShopClosed is returned when check-in is attempted outside the
	// shop's resolved open window.
	ErrShopClosed = errors.New("shop closed")

	// ErrNoShowNotEligible is returned when a no-show marking is requested
	// before the grace window has elapsed, or for a non-pending ticket.
	ErrNoShowNotEligible = errors.New("ticket not eligible for no-show")
)
