package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking
// infrastructure details: raw store and provider errors stay in the logs,
// callers only ever see the taxonomy-mapped message.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrCooldown      = errors.New("cooldown active")
	ErrResendLimit   = errors.New("resend limit exceeded")
	ErrInvalidOTP    = errors.New("invalid or expired code")
	ErrDelivery      = errors.New("delivery failed")
	ErrConfiguration = errors.New("configuration missing")
)
