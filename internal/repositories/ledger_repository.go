package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/storage"
)

// Atomic is the transactional handle passed to RunAtomic callbacks.
// Every operation runs inside the same database transaction; the
// Account read takes a row lock, so concurrent units touching the same
// account serialize on it.
type Atomic interface {
	Account(ctx context.Context, accountUUID string) (*models.Account, error)
	UpdateBalance(ctx context.Context, accountUUID string, balance decimal.Decimal) error
	AppendTransaction(ctx context.Context, in *models.Transaction) error
	AppendStatement(ctx context.Context, in *models.Statement) error
	TransactionExists(ctx context.Context, idempotencyKey string) (bool, error)
	MarkWithdrawalJob(ctx context.Context, jobUUID string, state string) error
}

type AtomicOperation func(ctx context.Context, atomic Atomic) error

type LedgerRepository struct {
	strg LedgerStorage
	lg   *logging.ZapLogger
}

type LedgerStorage interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

func NewLedgerRepository(strg *storage.Storage, lg *logging.ZapLogger) *LedgerRepository {
	return &LedgerRepository{strg: strg.DB, lg: lg}
}

// RunAtomic executes fn inside one database transaction: all writes
// commit together or not at all. Rollback on error is unconditional,
// a caller timeout never leaves a partial commit behind.
func (rep *LedgerRepository) RunAtomic(ctx context.Context, fn AtomicOperation) error {
	tx, err := rep.strg.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("ledger_repository: create tx error %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &atomicTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger_repository: commit tx error %w", err)
	}

	return nil
}

type atomicTx struct {
	tx pgx.Tx
}

func (a *atomicTx) Account(ctx context.Context, accountUUID string) (*models.Account, error) {
	row := a.tx.QueryRow(
		ctx,
		`
			SELECT uuid, balance::text, created_at
			FROM accounts
			WHERE uuid = $1
			FOR UPDATE
		`,
		accountUUID,
	)

	acc := &models.Account{}
	var balance string
	if err := row.Scan(&acc.UUID, &balance, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}

		return nil, fmt.Errorf("ledger_repository: scan account error %w", err)
	}

	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("ledger_repository: parse balance error %w", err)
	}
	acc.Balance = b

	return acc, nil
}

func (a *atomicTx) UpdateBalance(ctx context.Context, accountUUID string, balance decimal.Decimal) error {
	if _, err := a.tx.Exec(
		ctx,
		`
			UPDATE accounts
			SET balance = $1::numeric
			WHERE uuid = $2
		`,
		balance.String(), accountUUID,
	); err != nil {
		return fmt.Errorf("ledger_repository: update balance error %w", err)
	}

	return nil
}

func (a *atomicTx) AppendTransaction(ctx context.Context, in *models.Transaction) error {
	var idempotencyKey any
	if in.IdempotencyKey != "" {
		idempotencyKey = in.IdempotencyKey
	}

	if _, err := a.tx.Exec(
		ctx,
		`
			INSERT INTO transactions(uuid, account_uuid, operation, amount, idempotency_key, created_at)
			VALUES ($1, $2, $3, $4::numeric, $5, $6)
		`,
		in.UUID, in.AccountUUID, in.Type, in.Amount.String(), idempotencyKey, in.CreatedAt,
	); err != nil {
		return fmt.Errorf("ledger_repository: create transaction record error %w", err)
	}

	return nil
}

func (a *atomicTx) AppendStatement(ctx context.Context, in *models.Statement) error {
	if _, err := a.tx.Exec(
		ctx,
		`
			INSERT INTO statements(uuid, transaction_uuid, description, created_at)
			VALUES ($1, $2, $3, $4)
		`,
		in.UUID, in.TransactionUUID, in.Description, in.CreatedAt,
	); err != nil {
		return fmt.Errorf("ledger_repository: create statement record error %w", err)
	}

	return nil
}

func (a *atomicTx) TransactionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	row := a.tx.QueryRow(
		ctx,
		`
			SELECT 1
			FROM transactions
			WHERE idempotency_key = $1
			LIMIT 1
		`,
		idempotencyKey,
	)

	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("ledger_repository: check idempotency key error %w", err)
	}

	return true, nil
}

// MarkWithdrawalJob records a job's terminal outcome in the same
// transaction as the balance mutation, so the outcome and the ledger
// records commit as one unit.
func (a *atomicTx) MarkWithdrawalJob(ctx context.Context, jobUUID string, state string) error {
	if _, err := a.tx.Exec(
		ctx,
		`
			UPDATE withdrawal_jobs
			SET state = $1
			WHERE uuid = $2
		`,
		state, jobUUID,
	); err != nil {
		return fmt.Errorf("ledger_repository: mark withdrawal job error %w", err)
	}

	return nil
}
