package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/contabank/ledger/internal/ledger"
	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/repositories"
)

// Daemon is the withdrawal worker: it drains the inbox table and
// executes each job through the same atomic unit deposits use. Per
// job: re-validate funds with the account row locked, then subtract
// the amount and append the transaction and statement, or reject the
// job terminally when funds are short. Redelivered jobs are detected
// by their idempotency key and skipped. Transient failures are
// retried with exponential backoff up to a cap, then the job is
// buried in the dead state.
type Daemon struct {
	lg           *logging.ZapLogger
	pollInterval time.Duration
	workersCount int64
	cfg          *Config

	cancaller  context.CancelFunc
	globalCtx  context.Context
	jobs       WithdrawalJobsRepository
	unit       UnitOfWork
	statements *ledger.StatementWriter
}

type WithdrawalJobsRepository interface {
	Reserve(ctx context.Context, lease time.Duration) (*models.ReservedWithdrawalJob, error)
	SetState(ctx context.Context, uuid string, newState string) error
	Retry(ctx context.Context, uuid string, delay time.Duration) error
}

type UnitOfWork interface {
	RunAtomic(ctx context.Context, fn repositories.AtomicOperation) error
}

func NewDaemon(
	lc fx.Lifecycle,
	lg *logging.ZapLogger,
	cfg *Config,
	jobs WithdrawalJobsRepository,
	unit UnitOfWork,
	statements *ledger.StatementWriter,
) *Daemon {
	dmn := &Daemon{
		lg:           lg,
		pollInterval: time.Duration(cfg.PollInterval) * time.Millisecond,
		workersCount: cfg.WorkersCount,
		cfg:          cfg,
		jobs:         jobs,
		unit:         unit,
		statements:   statements,
	}
	lc.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				dmn.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				dmn.cancaller()
				return nil
			},
		},
	)

	return dmn
}

func (dmn *Daemon) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	dmn.cancaller = cancel
	dmn.globalCtx = dmn.lg.WithContextFields(ctx, zap.String("name", "withdrawal_jobs_daemon"))

	dmn.lg.DebugCtx(ctx, "start processing withdrawal jobs", zap.Any("config", dmn.cfg))

	for i := 0; i < int(dmn.workersCount); i++ {
		wctx := dmn.lg.WithContextFields(dmn.globalCtx, zap.Int("worker_id", i))
		go func() {
			ticker := time.NewTicker(dmn.pollInterval)

			for {
				select {
				case <-wctx.Done():
					dmn.lg.DebugCtx(wctx, "daemon worker graceful shutdown")
					return
				case <-ticker.C:
					if err := dmn.ProcessJob(wctx); err != nil {
						dmn.lg.ErrorCtx(wctx, "process withdrawal job finished error", zap.Error(err))
					}
				}
			}
		}()
	}
}

// ProcessJob runs one job through its state machine: reserved ->
// validating -> committed or rejected, with the outcome recorded in
// the same transaction as the mutation.
func (dmn *Daemon) ProcessJob(ctx context.Context) error {
	job, err := dmn.jobs.Reserve(ctx, time.Duration(dmn.cfg.ReservationLeaseInterval)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("reserve withdrawal job error %w", err)
	}

	if job == nil {
		return nil
	}

	ctx = dmn.lg.WithContextFields(ctx, zap.String("job_uuid", job.UUID), zap.String("account_uuid", job.AccountUUID))

	if int64(job.Attempts) > dmn.cfg.MaxAttempts {
		if err := dmn.jobs.SetState(ctx, job.UUID, models.WithdrawalJobDeadState); err != nil {
			return fmt.Errorf("bury withdrawal job error %w", err)
		}

		dmn.lg.ErrorCtx(ctx, "withdrawal job exceeded max attempts, moved to dead letter", zap.Int32("attempts", job.Attempts))
		return nil
	}

	state, err := dmn.execute(ctx, job)
	if err != nil {
		delay := dmn.retryDelay(job.Attempts)
		if err := dmn.jobs.Retry(ctx, job.UUID, delay); err != nil {
			return fmt.Errorf("schedule withdrawal job retry error %w", err)
		}

		return fmt.Errorf("execute withdrawal job error %w", err)
	}

	if state == models.WithdrawalJobRejectedState {
		dmn.lg.InfoCtx(ctx, "withdrawal rejected, insufficient funds", zap.String("amount", job.Amount.String()))
	}

	return nil
}

func (dmn *Daemon) execute(ctx context.Context, job *models.ReservedWithdrawalJob) (string, error) {
	state := models.WithdrawalJobFinishedState

	err := dmn.unit.RunAtomic(ctx, func(ctx context.Context, atomic repositories.Atomic) error {
		committed, err := atomic.TransactionExists(ctx, job.UUID)
		if err != nil {
			return err
		}

		// Redelivery after a committed execution: record the outcome
		// again, mutate nothing.
		if committed {
			return atomic.MarkWithdrawalJob(ctx, job.UUID, state)
		}

		acc, err := atomic.Account(ctx, job.AccountUUID)
		if err != nil {
			if errors.Is(err, models.ErrAccountNotFound) {
				state = models.WithdrawalJobRejectedState
				return atomic.MarkWithdrawalJob(ctx, job.UUID, state)
			}

			return err
		}

		// Authoritative funds check, account row locked. A shortfall
		// here is final for this job, not a transient error.
		if acc.Balance.LessThan(job.Amount) {
			state = models.WithdrawalJobRejectedState
			return atomic.MarkWithdrawalJob(ctx, job.UUID, state)
		}

		transaction := &models.Transaction{
			UUID:           uuid.NewString(),
			AccountUUID:    acc.UUID,
			Type:           models.TransactionTypeWithdraw,
			Amount:         job.Amount,
			IdempotencyKey: job.UUID,
			CreatedAt:      time.Now(),
		}

		if err := atomic.UpdateBalance(ctx, acc.UUID, acc.Balance.Sub(job.Amount)); err != nil {
			return err
		}

		if err := atomic.AppendTransaction(ctx, transaction); err != nil {
			return err
		}

		if err := atomic.AppendStatement(ctx, dmn.statements.ForWithdrawal(transaction)); err != nil {
			return err
		}

		return atomic.MarkWithdrawalJob(ctx, job.UUID, state)
	})
	if err != nil {
		return "", err
	}

	return state, nil
}

func (dmn *Daemon) retryDelay(attempts int32) time.Duration {
	base := time.Duration(dmn.cfg.RetryBackoffInterval) * time.Millisecond
	if attempts < 1 {
		attempts = 1
	}

	return base << (attempts - 1)
}
