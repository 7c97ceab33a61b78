package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/storage"
)

// WithdrawalJobsRepository is the durable inbox between the queue
// consumer and the worker daemon. Jobs land here with state "new" and
// leave through a terminal state (finished, rejected or dead).
type WithdrawalJobsRepository struct {
	strg WithdrawalJobsStorage
	lg   *logging.ZapLogger
}

type WithdrawalJobsStorage interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

func NewWithdrawalJobsRepository(strg *storage.Storage, lg *logging.ZapLogger) *WithdrawalJobsRepository {
	return &WithdrawalJobsRepository{strg: strg.DB, lg: lg}
}

// Save persists a consumed queue message. The job uuid is the conflict
// key, so a redelivered message is a no-op here.
func (rep *WithdrawalJobsRepository) Save(ctx context.Context, in *models.WithdrawalJob) error {
	_, err := rep.strg.Exec(
		ctx,
		`
			INSERT INTO withdrawal_jobs(uuid, account_uuid, amount, state, enqueued_at)
			VALUES ($1, $2, $3::numeric, $4, $5)
			ON CONFLICT DO NOTHING
		`,
		in.UUID, in.AccountUUID, in.Amount.String(), models.WithdrawalJobNewState, in.EnqueuedAt,
	)

	if err != nil {
		return fmt.Errorf("withdrawal_jobs_repository: save job error %w", err)
	}

	return nil
}

// Reserve claims the oldest runnable job for this worker. A claim
// bumps the attempt counter and pushes next_retry_at by lease, so a
// job abandoned by a crashed worker becomes runnable again once its
// lease expires. SKIP LOCKED keeps concurrently polling workers from
// blocking on each other's claims.
func (rep *WithdrawalJobsRepository) Reserve(ctx context.Context, lease time.Duration) (*models.ReservedWithdrawalJob, error) {
	tx, err := rep.strg.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("withdrawal_jobs_repository: create tx error %w", err)
	}
	defer tx.Rollback(ctx)

	job := &models.ReservedWithdrawalJob{State: models.WithdrawalJobProcessingState}
	row := tx.QueryRow(
		ctx,
		`
			SELECT uuid, account_uuid, amount::text, attempts, enqueued_at
			FROM withdrawal_jobs
			WHERE state IN ($1, $2) AND next_retry_at <= now()
			ORDER BY enqueued_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`,
		models.WithdrawalJobNewState, models.WithdrawalJobProcessingState,
	)

	var amount string
	if err := row.Scan(&job.UUID, &job.AccountUUID, &amount, &job.Attempts, &job.EnqueuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("withdrawal_jobs_repository: scan job error %w", err)
	}

	a, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("withdrawal_jobs_repository: parse amount error %w", err)
	}
	job.Amount = a
	job.Attempts++

	if _, err := tx.Exec(
		ctx,
		`
			UPDATE withdrawal_jobs
			SET state = $1, attempts = attempts + 1, next_retry_at = now() + ($2 * interval '1 millisecond')
			WHERE uuid = $3
		`,
		models.WithdrawalJobProcessingState, lease.Milliseconds(), job.UUID,
	); err != nil {
		return nil, fmt.Errorf("withdrawal_jobs_repository: set processing state error %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("withdrawal_jobs_repository: commit tx error %w", err)
	}

	return job, nil
}

func (rep *WithdrawalJobsRepository) SetState(ctx context.Context, uuid string, newState string) error {
	tx, err := rep.strg.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("withdrawal_jobs_repository: create tx error %w", err)
	}
	defer tx.Rollback(ctx)

	if err := rep.setStateTX(ctx, uuid, newState, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Retry schedules another attempt after delay and puts the job back
// into the new state.
func (rep *WithdrawalJobsRepository) Retry(ctx context.Context, uuid string, delay time.Duration) error {
	_, err := rep.strg.Exec(
		ctx,
		`
			UPDATE withdrawal_jobs
			SET state = $1, next_retry_at = now() + ($2 * interval '1 millisecond')
			WHERE uuid = $3
		`,
		models.WithdrawalJobNewState, delay.Milliseconds(), uuid,
	)

	if err != nil {
		return fmt.Errorf("withdrawal_jobs_repository: schedule retry error %w", err)
	}

	return nil
}

func (rep *WithdrawalJobsRepository) setStateTX(ctx context.Context, uuid string, newState string, tx pgx.Tx) error {
	if _, err := tx.Exec(
		ctx,
		`
			UPDATE withdrawal_jobs
			SET state = $1
			WHERE uuid = $2
		`,
		newState, uuid,
	); err != nil {
		return fmt.Errorf("withdrawal_jobs_repository: set state error %w", err)
	}

	return nil
}
