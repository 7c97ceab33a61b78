package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contabank/ledger/internal/models"
)

const statementTimeLayout = "Monday, 2 January 2006, 15:04"

// StatementWriter produces the human-readable record attached to
// every committed transaction.
type StatementWriter struct {
	loc *time.Location
}

func NewStatementWriter() *StatementWriter {
	return &StatementWriter{loc: time.Local}
}

func (w *StatementWriter) ForDeposit(t *models.Transaction) *models.Statement {
	return w.build(t, fmt.Sprintf(
		"Deposit of R$ %s completed successfully. %s.",
		t.Amount.StringFixed(2),
		t.CreatedAt.In(w.loc).Format(statementTimeLayout),
	))
}

func (w *StatementWriter) ForWithdrawal(t *models.Transaction) *models.Statement {
	return w.build(t, fmt.Sprintf(
		"Withdrawal of R$ %s completed successfully. %s.",
		t.Amount.StringFixed(2),
		t.CreatedAt.In(w.loc).Format(statementTimeLayout),
	))
}

func (w *StatementWriter) build(t *models.Transaction, description string) *models.Statement {
	return &models.Statement{
		UUID:            uuid.NewString(),
		TransactionUUID: t.UUID,
		Description:     description,
		CreatedAt:       t.CreatedAt,
	}
}
