package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/repositories"
)

// Processor accepts deposit and withdrawal requests against account
// balances. Deposits commit synchronously inside one atomic unit.
// Withdrawals pass an advisory funds check and are handed to the
// durable queue; the worker daemon performs the authoritative check
// and the mutation later.
type Processor struct {
	lg           *logging.ZapLogger
	unit         UnitOfWork
	accounts     AccountsRepository
	transactions TransactionsRepository
	publisher    WithdrawalJobsPublisher
	statements   *StatementWriter
}

type UnitOfWork interface {
	RunAtomic(ctx context.Context, fn repositories.AtomicOperation) error
}

type AccountsRepository interface {
	Find(ctx context.Context, accountUUID string) (*models.Account, error)
}

type TransactionsRepository interface {
	SearchByAccountUUID(ctx context.Context, accountUUID string) ([]*models.Transaction, error)
}

type WithdrawalJobsPublisher interface {
	Publish(ctx context.Context, job *models.WithdrawalJob) error
}

func NewProcessor(
	lg *logging.ZapLogger,
	unit UnitOfWork,
	accounts AccountsRepository,
	transactions TransactionsRepository,
	publisher WithdrawalJobsPublisher,
	statements *StatementWriter,
) *Processor {
	return &Processor{
		lg:           lg,
		unit:         unit,
		accounts:     accounts,
		transactions: transactions,
		publisher:    publisher,
		statements:   statements,
	}
}

type DepositResult struct {
	Balance         decimal.Decimal
	TransactionUUID string
}

// Deposit increments the balance and appends the transaction and its
// statement in one atomic unit. The result is returned only after
// commit.
func (prc *Processor) Deposit(ctx context.Context, accountUUID string, amount decimal.Decimal) (*DepositResult, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, models.ErrAmountMustBePositive
	}

	result := &DepositResult{}
	err := prc.unit.RunAtomic(ctx, func(ctx context.Context, atomic repositories.Atomic) error {
		acc, err := atomic.Account(ctx, accountUUID)
		if err != nil {
			return err
		}

		transaction := &models.Transaction{
			UUID:        uuid.NewString(),
			AccountUUID: acc.UUID,
			Type:        models.TransactionTypeDeposit,
			Amount:      amount,
			CreatedAt:   time.Now(),
		}

		newBalance := acc.Balance.Add(amount)
		if err := atomic.UpdateBalance(ctx, acc.UUID, newBalance); err != nil {
			return err
		}

		if err := atomic.AppendTransaction(ctx, transaction); err != nil {
			return err
		}

		if err := atomic.AppendStatement(ctx, prc.statements.ForDeposit(transaction)); err != nil {
			return err
		}

		result.Balance = newBalance
		result.TransactionUUID = transaction.UUID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger/processor: deposit error %w", err)
	}

	prc.lg.InfoCtx(ctx, "deposit committed",
		zap.String("account_uuid", accountUUID),
		zap.String("transaction_uuid", result.TransactionUUID),
		zap.String("amount", amount.String()),
	)

	return result, nil
}

type WithdrawResult struct {
	Accepted bool
	JobUUID  string
}

// Withdraw validates the request, rejects obviously uncovered amounts
// and publishes a job to the withdrawal queue. The funds check here
// is advisory only: the balance may change before the worker runs,
// and the worker re-validates inside its own atomic unit. Accepted
// means queued, not settled.
func (prc *Processor) Withdraw(ctx context.Context, accountUUID string, amount decimal.Decimal) (*WithdrawResult, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, models.ErrAmountMustBePositive
	}

	acc, err := prc.accounts.Find(ctx, accountUUID)
	if err != nil {
		return nil, fmt.Errorf("ledger/processor: find account error %w", err)
	}

	if acc.Balance.LessThan(amount) {
		return nil, fmt.Errorf("ledger/processor: balance %s below %s error %w", acc.Balance, amount, models.ErrInsufficientFunds)
	}

	job := &models.WithdrawalJob{
		UUID:        uuid.NewString(),
		AccountUUID: acc.UUID,
		Amount:      amount,
		EnqueuedAt:  time.Now(),
	}

	if err := prc.publisher.Publish(ctx, job); err != nil {
		prc.lg.ErrorCtx(ctx, "publish withdrawal job failed", zap.Error(err), zap.String("account_uuid", accountUUID))
		return nil, fmt.Errorf("ledger/processor: publish withdrawal job error %w", err)
	}

	prc.lg.InfoCtx(ctx, "withdrawal accepted",
		zap.String("account_uuid", accountUUID),
		zap.String("job_uuid", job.UUID),
		zap.String("amount", amount.String()),
	)

	return &WithdrawResult{Accepted: true, JobUUID: job.UUID}, nil
}

// Statement returns the committed transactions of an account, most
// recent first.
func (prc *Processor) Statement(ctx context.Context, accountUUID string) ([]*models.Transaction, error) {
	if _, err := prc.accounts.Find(ctx, accountUUID); err != nil {
		return nil, fmt.Errorf("ledger/processor: find account error %w", err)
	}

	transactions, err := prc.transactions.SearchByAccountUUID(ctx, accountUUID)
	if err != nil {
		return nil, fmt.Errorf("ledger/processor: fetch transactions error %w", err)
	}

	return transactions, nil
}
