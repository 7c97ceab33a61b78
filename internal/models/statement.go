package models

import "time"

// Statement is the human-readable record tied 1:1 to a transaction.
type Statement struct {
	UUID            string
	TransactionUUID string
	Description     string
	CreatedAt       time.Time
}
