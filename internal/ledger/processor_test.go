package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contabank/ledger/internal/config"
	"github.com/contabank/ledger/internal/logging"
	"github.com/contabank/ledger/internal/models"
	"github.com/contabank/ledger/internal/repositories"
)

// memStore is an in-memory stand-in for the postgres-backed
// repositories. RunAtomic holds one lock for the whole unit, which
// gives the same serializability the row lock provides, and applies
// writes only when the callback succeeds.
type memStore struct {
	mu           sync.Mutex
	accounts     map[string]*models.Account
	transactions []*models.Transaction
	statements   []*models.Statement
	jobStates    map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  map[string]*models.Account{},
		jobStates: map[string]string{},
	}
}

func (s *memStore) addAccount(uuid string, balance string) {
	s.accounts[uuid] = &models.Account{
		UUID:      uuid,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now(),
	}
}

func (s *memStore) RunAtomic(ctx context.Context, fn repositories.AtomicOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	atomic := &memAtomic{store: s, balances: map[string]decimal.Decimal{}, jobStates: map[string]string{}}
	if err := fn(ctx, atomic); err != nil {
		return err
	}

	for uuid, balance := range atomic.balances {
		s.accounts[uuid].Balance = balance
	}
	s.transactions = append(s.transactions, atomic.transactions...)
	s.statements = append(s.statements, atomic.statements...)
	for uuid, state := range atomic.jobStates {
		s.jobStates[uuid] = state
	}

	return nil
}

func (s *memStore) Find(ctx context.Context, accountUUID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountUUID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}

	cp := *acc
	return &cp, nil
}

func (s *memStore) SearchByAccountUUID(ctx context.Context, accountUUID string) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*models.Transaction{}
	for _, t := range s.transactions {
		if t.AccountUUID == accountUUID {
			result = append(result, t)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// memAtomic buffers writes until the unit commits.
type memAtomic struct {
	store        *memStore
	balances     map[string]decimal.Decimal
	transactions []*models.Transaction
	statements   []*models.Statement
	jobStates    map[string]string
}

func (a *memAtomic) Account(ctx context.Context, accountUUID string) (*models.Account, error) {
	acc, ok := a.store.accounts[accountUUID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}

	cp := *acc
	if balance, ok := a.balances[accountUUID]; ok {
		cp.Balance = balance
	}

	return &cp, nil
}

func (a *memAtomic) UpdateBalance(ctx context.Context, accountUUID string, balance decimal.Decimal) error {
	a.balances[accountUUID] = balance
	return nil
}

func (a *memAtomic) AppendTransaction(ctx context.Context, in *models.Transaction) error {
	a.transactions = append(a.transactions, in)
	return nil
}

func (a *memAtomic) AppendStatement(ctx context.Context, in *models.Statement) error {
	a.statements = append(a.statements, in)
	return nil
}

func (a *memAtomic) TransactionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	for _, t := range a.store.transactions {
		if t.IdempotencyKey == idempotencyKey {
			return true, nil
		}
	}

	return false, nil
}

func (a *memAtomic) MarkWithdrawalJob(ctx context.Context, jobUUID string, state string) error {
	a.jobStates[jobUUID] = state
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []*models.WithdrawalJob
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, job *models.WithdrawalJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}

	p.jobs = append(p.jobs, job)
	return nil
}

func newTestProcessor(t *testing.T, store *memStore, publisher *fakePublisher) *Processor {
	t.Helper()

	lg, err := logging.NewZapLogger(&config.Config{LogLevel: 3})
	require.NoError(t, err)

	return NewProcessor(lg, store, store, store, publisher, NewStatementWriter())
}

func TestDeposit(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "0")
	prc := newTestProcessor(t, store, &fakePublisher{})

	result, err := prc.Deposit(context.Background(), "acc1", decimal.RequireFromString("50.00"))
	require.NoError(t, err)

	assert.True(t, result.Balance.Equal(decimal.RequireFromString("50.00")))
	assert.NotEmpty(t, result.TransactionUUID)

	require.Len(t, store.transactions, 1)
	assert.Equal(t, models.TransactionTypeDeposit, store.transactions[0].Type)
	assert.True(t, store.transactions[0].Amount.Equal(decimal.RequireFromString("50.00")))

	require.Len(t, store.statements, 1)
	assert.Equal(t, store.transactions[0].UUID, store.statements[0].TransactionUUID)
	assert.Contains(t, store.statements[0].Description, "Deposit of R$ 50.00")
}

func TestDeposit_AmountMustBePositive(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "0")
	prc := newTestProcessor(t, store, &fakePublisher{})

	for _, amount := range []string{"0", "-5.00"} {
		_, err := prc.Deposit(context.Background(), "acc1", decimal.RequireFromString(amount))
		assert.ErrorIs(t, err, models.ErrAmountMustBePositive)
	}

	assert.Empty(t, store.transactions, "no side effect before validation passes")
}

func TestDeposit_AccountNotFound(t *testing.T) {
	prc := newTestProcessor(t, newMemStore(), &fakePublisher{})

	_, err := prc.Deposit(context.Background(), "missing", decimal.RequireFromString("10.00"))
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestWithdraw_Accepted(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "50.00")
	publisher := &fakePublisher{}
	prc := newTestProcessor(t, store, publisher)

	result, err := prc.Withdraw(context.Background(), "acc1", decimal.RequireFromString("30.00"))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.NotEmpty(t, result.JobUUID)

	// Acceptance means queued: no synchronous mutation.
	require.Len(t, publisher.jobs, 1)
	assert.Equal(t, "acc1", publisher.jobs[0].AccountUUID)
	assert.True(t, publisher.jobs[0].Amount.Equal(decimal.RequireFromString("30.00")))
	assert.Empty(t, store.transactions)
	acc, _ := store.Find(context.Background(), "acc1")
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("50.00")))
}

func TestWithdraw_InsufficientFundsFastPath(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "20.00")
	publisher := &fakePublisher{}
	prc := newTestProcessor(t, store, publisher)

	_, err := prc.Withdraw(context.Background(), "acc1", decimal.RequireFromString("1000.00"))
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	assert.Empty(t, publisher.jobs, "rejected requests are not enqueued")
	acc, _ := store.Find(context.Background(), "acc1")
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("20.00")))
}

func TestWithdraw_QueueUnavailable(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "50.00")
	publisher := &fakePublisher{err: models.ErrQueueUnavailable}
	prc := newTestProcessor(t, store, publisher)

	_, err := prc.Withdraw(context.Background(), "acc1", decimal.RequireFromString("30.00"))
	assert.ErrorIs(t, err, models.ErrQueueUnavailable)
}

func TestWithdraw_AmountMustBePositive(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "50.00")
	publisher := &fakePublisher{}
	prc := newTestProcessor(t, store, publisher)

	_, err := prc.Withdraw(context.Background(), "acc1", decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, models.ErrAmountMustBePositive)
	assert.Empty(t, publisher.jobs)
}

func TestStatement(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "0")
	prc := newTestProcessor(t, store, &fakePublisher{})

	_, err := prc.Deposit(context.Background(), "acc1", decimal.RequireFromString("50.00"))
	require.NoError(t, err)

	// Second transaction with a later timestamp.
	store.transactions = append(store.transactions, &models.Transaction{
		UUID:        "t2",
		AccountUUID: "acc1",
		Type:        models.TransactionTypeWithdraw,
		Amount:      decimal.RequireFromString("30.00"),
		CreatedAt:   time.Now().Add(time.Second),
	})

	transactions, err := prc.Statement(context.Background(), "acc1")
	require.NoError(t, err)

	require.Len(t, transactions, 2)
	assert.Equal(t, models.TransactionTypeWithdraw, transactions[0].Type, "most recent first")
	assert.Equal(t, models.TransactionTypeDeposit, transactions[1].Type)
}

func TestStatement_AccountNotFound(t *testing.T) {
	prc := newTestProcessor(t, newMemStore(), &fakePublisher{})

	_, err := prc.Statement(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestDeposit_RollbackOnFailure(t *testing.T) {
	store := newMemStore()
	store.addAccount("acc1", "10.00")
	prc := newTestProcessor(t, store, &fakePublisher{})

	boom := errors.New("storage gone")
	failing := &failingUnit{store: store, err: boom}
	prc.unit = failing

	_, err := prc.Deposit(context.Background(), "acc1", decimal.RequireFromString("5.00"))
	assert.ErrorIs(t, err, boom)

	acc, _ := store.Find(context.Background(), "acc1")
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("10.00")), "no partial commit")
	assert.Empty(t, store.transactions)
	assert.Empty(t, store.statements)
}

// failingUnit runs the callback but fails the commit, the way a
// connection loss at commit time would.
type failingUnit struct {
	store *memStore
	err   error
}

func (u *failingUnit) RunAtomic(ctx context.Context, fn repositories.AtomicOperation) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	atomic := &memAtomic{store: u.store, balances: map[string]decimal.Decimal{}, jobStates: map[string]string{}}
	if err := fn(ctx, atomic); err != nil {
		return err
	}

	return u.err
}
