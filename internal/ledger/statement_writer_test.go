package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/contabank/ledger/internal/models"
)

func TestStatementWriter(t *testing.T) {
	w := NewStatementWriter()
	w.loc = time.UTC

	transaction := &models.Transaction{
		UUID:        "t1",
		AccountUUID: "acc1",
		Amount:      decimal.RequireFromString("50.5"),
		CreatedAt:   time.Date(2025, time.March, 3, 14, 30, 0, 0, time.UTC),
	}

	deposit := w.ForDeposit(transaction)
	assert.Equal(t, "t1", deposit.TransactionUUID)
	assert.NotEmpty(t, deposit.UUID)
	assert.Equal(t, "Deposit of R$ 50.50 completed successfully. Monday, 3 March 2025, 14:30.", deposit.Description)

	withdrawal := w.ForWithdrawal(transaction)
	assert.Equal(t, "Withdrawal of R$ 50.50 completed successfully. Monday, 3 March 2025, 14:30.", withdrawal.Description)
	assert.NotEqual(t, deposit.UUID, withdrawal.UUID)
}
