package dal

import (
	"context"

	"github.com/pkg/errors"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
)

//go:generate mockgen -source=storage.go -destination=mocks/storage.go -package=mocks

var logger = diag.CreateLogger()

// ErrDuplicateAccountNumber is returned when saving an account with a number that is already in use
var ErrDuplicateAccountNumber = errors.New("Account number already in use")

// AccountMutation changes an account loaded by UpdateAccount.
// Returned error aborts the update and is passed to the caller as is
type AccountMutation func(acc *banking.Account) error

// Storage is a persistance layer
type Storage interface {
	Setup(ctx context.Context) error

	// AccountNumberExists reports if a number is already used by some account
	AccountNumberExists(ctx context.Context, number string) (bool, error)

	// FindAccountByNumber returns an account with its full history
	// or banking.ErrAccountNotFound
	FindAccountByNumber(ctx context.Context, number string) (*banking.Account, error)

	// SaveAccount inserts or updates the account and inserts history entries not stored yet
	SaveAccount(ctx context.Context, acc *banking.Account) error

	// UpdateAccount loads the account, applies the mutation and stores the result.
	// Concurrent updates of the same account are serialized
	UpdateAccount(ctx context.Context, number string, mutate AccountMutation) (*banking.Account, error)

	Close() error
}

func kindOf(value string) banking.TransactionKind {
	kind, err := banking.ParseTransactionKind(value)
	if err != nil {
		// Unknown kinds are kept as is, history is read only
		return banking.TransactionKind(value)
	}
	return kind
}

// ErrAccountNotUpdated is returned when a balance update did not hit exactly one row
var ErrAccountNotUpdated = errors.New("Account balance was not updated")

func checkSingleRowUpdated(affected int64, number string) error {
	if affected != 1 {
		return errors.Wrapf(ErrAccountNotUpdated, "Expected 1 row updated for account %v, got %v", number, affected)
	}
	return nil
}
