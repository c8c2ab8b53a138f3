package domain

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")

	ErrEscrowAlreadyExists     = errors.New("escrow already exists")
	ErrNoSuchEscrow            = errors.New("no such escrow")
	ErrFrozen                  = errors.New("escrow frozen")
	ErrNotFrozen               = errors.New("escrow not frozen")
	ErrSelfDistribution        = errors.New("self distribution attempt")
	ErrInsufficientEscrowFunds = errors.New("insufficient escrow funds")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrAdminAlreadyPresent     = errors.New("admin already present")
	ErrAdminNotPresent         = errors.New("admin not present")
	ErrLimitExceeded           = errors.New("limit exceeded")

	ErrPaymentAlreadyInitialized = errors.New("payment already initialized")
	ErrNoSuchPayment             = errors.New("no such payment agreement")
	ErrNoScheduledPayment        = errors.New("no scheduled payment recorded")
	ErrPaymentNotAvailable       = errors.New("payment not available yet")
	ErrPaymentNotReleased        = errors.New("payment not released")
	ErrNoEscrowAccountFound      = errors.New("no escrow account found")
)
