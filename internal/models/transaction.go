package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	TransactionTypeDeposit  = "deposit"
	TransactionTypeWithdraw = "withdraw"
)

// Transaction is an immutable record of one committed balance
// mutation. IdempotencyKey is set only for withdrawals executed from
// the queue: it carries the job uuid so a redelivered job can be
// recognized as already committed.
type Transaction struct {
	UUID           string
	AccountUUID    string
	Type           string
	Amount         decimal.Decimal
	IdempotencyKey string
	CreatedAt      time.Time
}
