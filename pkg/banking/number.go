package banking

import (
	"context"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
)

var logger = diag.CreateLogger()

const (
	minAccountNumber = 100000
	maxAccountNumber = 999999
)

var accountNumberPattern = regexp.MustCompile(`^\d{3}-\d{3}$`)

var errNumberTaken = errors.New("Account number is taken")

// NumberRegistry knows which account numbers are already in use
type NumberRegistry interface {
	AccountNumberExists(ctx context.Context, number string) (bool, error)
}

// FormatAccountNumber formats a 6 digit number as NNN-NNN
func FormatAccountNumber(value int) string {
	digits := strconv.Itoa(value)
	return digits[:3] + "-" + digits[3:]
}

// IsValidAccountNumber checks the NNN-NNN format
func IsValidAccountNumber(number string) bool {
	return accountNumberPattern.MatchString(number)
}

// AccountNumberAllocator generates unique account numbers
type AccountNumberAllocator struct {
	registry    NumberRegistry
	maxAttempts uint64

	mu  sync.Mutex
	rnd *rand.Rand
}

// AllocatorOpt is an option of the allocator
type AllocatorOpt func(a *AccountNumberAllocator)

// WithRand sets the source of randomness
func WithRand(rnd *rand.Rand) AllocatorOpt {
	return func(a *AccountNumberAllocator) {
		a.rnd = rnd
	}
}

// WithMaxAttempts limits number of draws per allocation. Zero means no limit
func WithMaxAttempts(maxAttempts uint64) AllocatorOpt {
	return func(a *AccountNumberAllocator) {
		a.maxAttempts = maxAttempts
	}
}

// NewAccountNumberAllocator returns an allocator that checks numbers against a given registry
func NewAccountNumberAllocator(registry NumberRegistry, opts ...AllocatorOpt) *AccountNumberAllocator {
	a := &AccountNumberAllocator{registry: registry}
	for _, opt := range opts {
		opt(a)
	}
	if a.rnd == nil {
		a.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return a
}

func (a *AccountNumberAllocator) draw() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return FormatAccountNumber(minAccountNumber + a.rnd.Intn(maxAccountNumber-minAccountNumber+1))
}

func (a *AccountNumberAllocator) policy(ctx context.Context) backoff.BackOff {
	var policy backoff.BackOff = &backoff.ZeroBackOff{}
	if a.maxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, a.maxAttempts-1)
	}
	return backoff.WithContext(policy, ctx)
}

// Allocate draws random numbers until a free one is found.
// Without max attempts only ctx cancellation stops the loop
func (a *AccountNumberAllocator) Allocate(ctx context.Context) (string, error) {
	var number string
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		candidate := a.draw()
		exists, err := a.registry.AccountNumberExists(ctx, candidate)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "Failed to check account number"))
		}
		if exists {
			logger.Debug(ctx, "Account number %v is taken (attempt %v)", candidate, attempt)
			return errNumberTaken
		}
		number = candidate
		return nil
	}, a.policy(ctx))
	if err != nil {
		if errors.Is(err, errNumberTaken) {
			return "", errors.Wrapf(ErrAccountNumbersExhausted, "Gave up after %v attempts", attempt)
		}
		return "", err
	}
	return number, nil
}
