package banking

import "github.com/pkg/errors"

var (
	// ErrAccountNotFound is returned when there is no account with a given number
	ErrAccountNotFound = errors.New("Account not found")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the account balance
	ErrInsufficientBalance = errors.New("Insufficient balance")

	// ErrInvalidAmount is returned for negative amounts
	ErrInvalidAmount = errors.New("Invalid amount")

	// ErrUnknownTransactionKind is returned when a kind has no apply rule
	ErrUnknownTransactionKind = errors.New("Unknown transaction kind")

	// ErrTransactionApplied is returned when applying the same transaction twice
	ErrTransactionApplied = errors.New("Transaction already applied")

	// ErrAccountNumbersExhausted is returned when the allocator runs out of attempts
	ErrAccountNumbersExhausted = errors.New("Failed to allocate unique account number")
)
