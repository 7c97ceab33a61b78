package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalJobNewState        = "new"
	WithdrawalJobProcessingState = "processing"
	WithdrawalJobFinishedState   = "finished"
	WithdrawalJobRejectedState   = "rejected"
	WithdrawalJobDeadState       = "dead"
)

// WithdrawalJob is the queue message for a deferred withdrawal. The
// UUID is assigned at publish time and doubles as the idempotency key
// for the committed transaction.
type WithdrawalJob struct {
	UUID        string          `json:"uuid"`
	AccountUUID string          `json:"account_uuid"`
	Amount      decimal.Decimal `json:"amount"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// ReservedWithdrawalJob is the persisted inbox form of a job between
// consumption from the queue and a terminal outcome.
type ReservedWithdrawalJob struct {
	WithdrawalJob
	State       string
	Attempts    int32
	NextRetryAt time.Time
}
