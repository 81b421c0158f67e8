package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrUnavailable       = errors.New("listing has no availability for the requested dates")
	ErrBookingNotPending = errors.New("booking is not in pending status")
	ErrBookingExpired    = errors.New("booking has expired")
	ErrPaymentFailed     = errors.New("payment failed")
)

var (
	ErrAlreadyReviewed  = errors.New("booking already reviewed")
	ErrReviewNotAllowed = errors.New("booking is not eligible for review")
)

var (
	ErrNoSignals = errors.New("no crowd signals available")
	ErrNoRoute   = errors.New("no route found")
)
