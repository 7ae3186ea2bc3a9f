package banking

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Account is a balance holding entity. Balance is changed only by applying transactions
type Account struct {
	ID        string
	Number    string
	Owner     string
	Balance   decimal.Decimal
	CreatedAt time.Time

	// Transactions is an ordered history of applied transactions. Append only.
	Transactions []Transaction
}

// AccountOpt is an option of a new account
type AccountOpt func(acc *Account)

// WithAccountID sets an explicit account id
func WithAccountID(id string) AccountOpt {
	return func(acc *Account) {
		acc.ID = id
	}
}

// WithAccountCreatedAt sets an explicit creation time
func WithAccountCreatedAt(createdAt time.Time) AccountOpt {
	return func(acc *Account) {
		acc.CreatedAt = createdAt
	}
}

// NewAccount returns an account with zero balance and empty history
func NewAccount(number string, owner string, opts ...AccountOpt) *Account {
	acc := &Account{
		ID:           uuid.NewString(),
		Number:       number,
		Owner:        owner,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now().UTC(),
		Transactions: []Transaction{},
	}
	for _, opt := range opts {
		opt(acc)
	}
	return acc
}

// Deposit increases the balance. History is not touched here, see Transaction.ApplyTo
func (acc *Account) Deposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrapf(ErrInvalidAmount, "Can not deposit %v", amount)
	}
	acc.Balance = acc.Balance.Add(amount)
	return nil
}

// Withdraw decreases the balance if there are enough funds
func (acc *Account) Withdraw(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrapf(ErrInvalidAmount, "Can not withdraw %v", amount)
	}
	if acc.Balance.LessThan(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "Can not withdraw %v from account %v", amount, acc.Number)
	}
	acc.Balance = acc.Balance.Sub(amount)
	return nil
}

// Equal compares identity only (id and number), never balances
func (acc *Account) Equal(other *Account) bool {
	if acc == nil || other == nil {
		return acc == other
	}
	return acc.ID == other.ID && acc.Number == other.Number
}

// Clone returns a deep copy of the account
func (acc *Account) Clone() *Account {
	clone := *acc
	clone.Transactions = make([]Transaction, len(acc.Transactions))
	copy(clone.Transactions, acc.Transactions)
	return &clone
}
