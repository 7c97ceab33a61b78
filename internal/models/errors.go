package models

import "errors"

var (
	ErrAmountMustBePositive = errors.New("amount must be positive")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrAccountNotFound      = errors.New("account not found")
	ErrQueueUnavailable     = errors.New("withdrawal queue unavailable")
)
