package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the authoritative balance. The balance is mutated
// only inside an atomic unit of work and never drops below zero.
type Account struct {
	UUID      string
	Balance   decimal.Decimal
	CreatedAt time.Time
}
