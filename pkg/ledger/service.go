package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
)

var logger = diag.CreateLogger()

// StatusOK is a status of an accepted transaction
const StatusOK = "OK"

// Receipt confirms that a transaction has been applied and stored
type Receipt struct {
	Status       string
	ApprovalCode string
}

// Service is a ledger service abstraction
type Service interface {
	OpenAccount(ctx context.Context, owner string) (*banking.Account, error)
	GetAccount(ctx context.Context, number string) (*banking.Account, error)
	Credit(ctx context.Context, number string, amount decimal.Decimal) (*Receipt, error)
	Debit(ctx context.Context, number string, amount decimal.Decimal) (*Receipt, error)
	PayBill(ctx context.Context, number string, amount decimal.Decimal, payee string) (*Receipt, error)
}

type newTransactionFn func(opts ...banking.TransactionOpt) (*banking.Transaction, error)

type service struct {
	storage       dal.Storage
	allocator     *banking.AccountNumberAllocator
	allocatorOpts []banking.AllocatorOpt

	now             func() time.Time
	newID           func() string
	newApprovalCode func() string
}

func (svc *service) OpenAccount(ctx context.Context, owner string) (*banking.Account, error) {
	var acc *banking.Account
	err := backoff.Retry(func() error {
		number, err := svc.allocator.Allocate(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		acc = banking.NewAccount(number, owner,
			banking.WithAccountID(svc.newID()),
			banking.WithAccountCreatedAt(svc.now()),
		)
		if err := svc.storage.SaveAccount(ctx, acc); err != nil {
			if errors.Is(err, dal.ErrDuplicateAccountNumber) {
				logger.Info(ctx, "Account number %v has been taken concurrently, allocating another", number)
				return err
			}
			return backoff.Permanent(errors.Wrap(err, "Failed to save account"))
		}
		return nil
	}, backoff.WithContext(&backoff.ZeroBackOff{}, ctx))
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Opened account %v", acc.Number)
	return acc, nil
}

func (svc *service) GetAccount(ctx context.Context, number string) (*banking.Account, error) {
	ctx = diag.ContextWithAccountNumber(ctx, number)
	logger.Debug(ctx, "Fetching account %v", number)
	return svc.storage.FindAccountByNumber(ctx, number)
}

// post constructs and applies the transaction within atomic storage update
// so the lookup, apply and persist happen as one unit
func (svc *service) post(ctx context.Context, number string, newTransaction newTransactionFn) (*Receipt, error) {
	ctx = diag.ContextWithAccountNumber(ctx, number)
	var trx *banking.Transaction
	if _, err := svc.storage.UpdateAccount(ctx, number, func(acc *banking.Account) error {
		var err error
		trx, err = newTransaction(
			banking.WithTransactionID(svc.newID()),
			banking.WithApprovalCode(svc.newApprovalCode()),
			banking.WithCreatedAt(svc.now()),
		)
		if err != nil {
			return err
		}
		return trx.ApplyTo(acc)
	}); err != nil {
		logger.WithError(err).Info(ctx, "Transaction for account %v rejected", number)
		return nil, err
	}
	logger.Debug(ctx, "Applied %v transaction %v to account %v", trx.Kind, trx.ID, number)
	return &Receipt{Status: StatusOK, ApprovalCode: trx.ApprovalCode}, nil
}

func (svc *service) Credit(ctx context.Context, number string, amount decimal.Decimal) (*Receipt, error) {
	return svc.post(ctx, number, func(opts ...banking.TransactionOpt) (*banking.Transaction, error) {
		return banking.NewDeposit(amount, opts...)
	})
}

func (svc *service) Debit(ctx context.Context, number string, amount decimal.Decimal) (*Receipt, error) {
	return svc.post(ctx, number, func(opts ...banking.TransactionOpt) (*banking.Transaction, error) {
		return banking.NewWithdrawal(amount, opts...)
	})
}

func (svc *service) PayBill(ctx context.Context, number string, amount decimal.Decimal, payee string) (*Receipt, error) {
	return svc.post(ctx, number, func(opts ...banking.TransactionOpt) (*banking.Transaction, error) {
		return banking.NewPhoneBillPayment(amount, payee, opts...)
	})
}

// ServiceOpt is an option for ledger service
type ServiceOpt func(*service)

// WithStorage will init the service with storage
func WithStorage(storage dal.Storage) ServiceOpt {
	return func(svc *service) {
		svc.storage = storage
	}
}

// WithAllocatorOpts passes options to account number allocator
func WithAllocatorOpts(opts ...banking.AllocatorOpt) ServiceOpt {
	return func(svc *service) {
		svc.allocatorOpts = append(svc.allocatorOpts, opts...)
	}
}

// WithNow sets a clock
func WithNow(now func() time.Time) ServiceOpt {
	return func(svc *service) {
		svc.now = now
	}
}

// WithApprovalCodes sets approval codes generator
func WithApprovalCodes(newApprovalCode func() string) ServiceOpt {
	return func(svc *service) {
		svc.newApprovalCode = newApprovalCode
	}
}

// NewService returns an instance of a ledger service
func NewService(opts ...ServiceOpt) Service {
	svc := &service{
		now: func() time.Time {
			return time.Now().UTC()
		},
		newID:           uuid.NewString,
		newApprovalCode: uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.allocator = banking.NewAccountNumberAllocator(svc.storage, svc.allocatorOpts...)
	return Service(svc)
}
