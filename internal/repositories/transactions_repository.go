package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/storage"
)

type TransactionsRepository struct {
	strg TransactionsStorage
	lg   *logging.ZapLogger
}

type TransactionsStorage interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

func NewTransactionsRepository(strg *storage.Storage, lg *logging.ZapLogger) *TransactionsRepository {
	return &TransactionsRepository{strg: strg.DB, lg: lg}
}

// SearchByAccountUUID returns the committed transactions of an
// account, most recent first. In-flight withdrawal jobs have no
// transaction row yet and are invisible here.
func (rep *TransactionsRepository) SearchByAccountUUID(ctx context.Context, accountUUID string) ([]*models.Transaction, error) {
	rows, err := rep.strg.Query(
		ctx,
		`
			SELECT uuid, account_uuid, operation, amount::text, COALESCE(idempotency_key, ''), created_at
			FROM transactions
			WHERE account_uuid = $1
			ORDER BY created_at DESC
		`,
		accountUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("transactions_repository: fetch transactions error %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		t := models.Transaction{}
		var amount string
		if err := rows.Scan(
			&t.UUID,
			&t.AccountUUID,
			&t.Type,
			&amount,
			&t.IdempotencyKey,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("transactions_repository: scan transactions error %w", err)
		}

		a, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transactions_repository: parse amount error %w", err)
		}
		t.Amount = a

		transactions = append(transactions, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transactions_repository: iterate transactions error %w", err)
	}

	return transactions, nil
}
