package banking

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// TransactionKind is a discriminator of a transaction
type TransactionKind string

const (
	// KindDeposit increases the balance
	KindDeposit TransactionKind = "Deposit"

	// KindWithdrawal decreases the balance
	KindWithdrawal TransactionKind = "Withdrawal"

	// KindPhoneBillPayment is a withdrawal made to pay a phone bill
	KindPhoneBillPayment TransactionKind = "PhoneBillPayment"
)

type applyFunc func(acc *Account, amount decimal.Decimal) error

// New kinds are registered here, nothing else dispatches on a kind
var applyFuncs = map[TransactionKind]applyFunc{
	KindDeposit:          (*Account).Deposit,
	KindWithdrawal:       (*Account).Withdraw,
	KindPhoneBillPayment: (*Account).Withdraw,
}

var legacyKindNames = map[string]TransactionKind{
	"deposittransaction":          KindDeposit,
	"withdrawaltransaction":       KindWithdrawal,
	"phonebillpaymenttransaction": KindPhoneBillPayment,
}

// Kinds returns all known transaction kinds
func Kinds() []TransactionKind {
	return []TransactionKind{KindDeposit, KindWithdrawal, KindPhoneBillPayment}
}

// ParseTransactionKind resolves a kind by its name, case insensitive.
// Legacy discriminator names (e.g DepositTransaction) are accepted as well
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, kind := range Kinds() {
		if strings.EqualFold(string(kind), value) {
			return kind, nil
		}
	}
	if kind, ok := legacyKindNames[strings.ToLower(value)]; ok {
		return kind, nil
	}
	return "", errors.Wrapf(ErrUnknownTransactionKind, "Unexpected kind: %v", value)
}

// Transaction is a record of one balance mutation
type Transaction struct {
	ID           string
	ApprovalCode string
	Kind         TransactionKind
	Amount       decimal.Decimal
	CreatedAt    time.Time

	// AccountNumber is a back reference for traceability only
	AccountNumber string

	// Payee is display only, set for phone bill payments
	Payee string

	applied bool
}

// TransactionOpt is an option of a new transaction
type TransactionOpt func(trx *Transaction)

// WithTransactionID sets an explicit transaction id
func WithTransactionID(id string) TransactionOpt {
	return func(trx *Transaction) {
		trx.ID = id
	}
}

// WithApprovalCode sets the approval code
func WithApprovalCode(code string) TransactionOpt {
	return func(trx *Transaction) {
		trx.ApprovalCode = code
	}
}

// WithCreatedAt sets an explicit creation time
func WithCreatedAt(createdAt time.Time) TransactionOpt {
	return func(trx *Transaction) {
		trx.CreatedAt = createdAt
	}
}

// WithAccountNumber sets the target account reference
func WithAccountNumber(number string) TransactionOpt {
	return func(trx *Transaction) {
		trx.AccountNumber = number
	}
}

// WithPayee sets a payee
func WithPayee(payee string) TransactionOpt {
	return func(trx *Transaction) {
		trx.Payee = payee
	}
}

// NewTransaction creates a not yet applied transaction of a given kind
func NewTransaction(kind TransactionKind, amount decimal.Decimal, opts ...TransactionOpt) (*Transaction, error) {
	if _, ok := applyFuncs[kind]; !ok {
		return nil, errors.Wrapf(ErrUnknownTransactionKind, "Can not create transaction of kind %v", kind)
	}
	if amount.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidAmount, "Transaction amount can not be negative: %v", amount)
	}
	trx := &Transaction{
		ID:           uuid.NewString(),
		ApprovalCode: uuid.NewString(),
		Kind:         kind,
		Amount:       amount,
		CreatedAt:    time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(trx)
	}
	return trx, nil
}

// NewDeposit creates a deposit transaction
func NewDeposit(amount decimal.Decimal, opts ...TransactionOpt) (*Transaction, error) {
	return NewTransaction(KindDeposit, amount, opts...)
}

// NewWithdrawal creates a withdrawal transaction
func NewWithdrawal(amount decimal.Decimal, opts ...TransactionOpt) (*Transaction, error) {
	return NewTransaction(KindWithdrawal, amount, opts...)
}

// NewPhoneBillPayment creates a phone bill payment transaction
func NewPhoneBillPayment(amount decimal.Decimal, payee string, opts ...TransactionOpt) (*Transaction, error) {
	return NewTransaction(KindPhoneBillPayment, amount, append(opts, WithPayee(payee))...)
}

// Applied reports if the transaction has already been applied to an account
func (trx *Transaction) Applied() bool {
	return trx.applied
}

// ApplyTo mutates the account balance according to the kind and appends
// the transaction to the account history. On failure the account is left untouched.
func (trx *Transaction) ApplyTo(acc *Account) error {
	if trx.applied {
		return errors.Wrapf(ErrTransactionApplied, "Transaction %v", trx.ID)
	}
	apply, ok := applyFuncs[trx.Kind]
	if !ok {
		return errors.Wrapf(ErrUnknownTransactionKind, "Can not apply transaction of kind %v", trx.Kind)
	}
	if err := apply(acc, trx.Amount); err != nil {
		return err
	}
	trx.AccountNumber = acc.Number
	trx.applied = true
	acc.Transactions = append(acc.Transactions, *trx)
	return nil
}
