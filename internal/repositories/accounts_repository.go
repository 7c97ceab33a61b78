package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/storage"
)

type AccountsRepository struct {
	strg AccountsStorage
	lg   *logging.ZapLogger
}

type AccountsStorage interface {
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

func NewAccountsRepository(strg *storage.Storage, lg *logging.ZapLogger) *AccountsRepository {
	return &AccountsRepository{strg: strg.DB, lg: lg}
}

// Find reads an account without locking it. Used by the withdraw fast
// path, where the balance is advisory only.
func (rep *AccountsRepository) Find(ctx context.Context, accountUUID string) (*models.Account, error) {
	row := rep.strg.QueryRow(
		ctx,
		`
			SELECT uuid, balance::text, created_at
			FROM accounts
			WHERE uuid = $1
		`,
		accountUUID,
	)

	acc := &models.Account{}
	var balance string
	if err := row.Scan(&acc.UUID, &balance, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}

		return nil, fmt.Errorf("accounts_repository: scan account error %w", err)
	}

	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("accounts_repository: parse balance error %w", err)
	}
	acc.Balance = b

	return acc, nil
}

func (rep *AccountsRepository) Create(ctx context.Context, in *models.Account) error {
	if _, err := rep.strg.Exec(
		ctx,
		`
			INSERT INTO accounts(uuid, balance, created_at)
			VALUES ($1, $2::numeric, $3)
		`,
		in.UUID, in.Balance.String(), in.CreatedAt,
	); err != nil {
		return fmt.Errorf("accounts_repository: create account error %w", err)
	}

	return nil
}
