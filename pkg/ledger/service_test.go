package ledger

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/dal/mocks"
	tst "github.com/evgeny-myasishchev/ledger.simple-banking/pkg/internal/testing"
)

func newSQLiteStorage(t *testing.T) dal.Storage {
	db, err := dal.OpenSQLiteDb(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	storage, err := dal.NewSQLStorage(dal.WithSQLDb(db))
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		storage.Close()
	})
	return storage
}

func openAccount(t *testing.T, svc Service, balance string) *banking.Account {
	ctx := context.Background()
	acc, err := svc.OpenAccount(ctx, faker.Name())
	if err != nil {
		t.Fatal(err)
	}
	if balance != "0" {
		if _, err := svc.Credit(ctx, acc.Number, decimal.RequireFromString(balance)); err != nil {
			t.Fatal(err)
		}
	}
	return acc
}

func TestService_OpenAccount(t *testing.T) {
	now := time.Now().Add(-time.Duration(rand.Intn(1000)) * time.Hour).UTC().Truncate(time.Second)
	svc := NewService(
		WithStorage(newSQLiteStorage(t)),
		WithNow(tst.NewMockNowService(now).Now),
	)
	ctx := context.Background()

	acc, err := svc.OpenAccount(ctx, "John Doe")
	if !assert.NoError(t, err) {
		return
	}
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "John Doe", acc.Owner)
	assert.True(t, banking.IsValidAccountNumber(acc.Number), "unexpected number: %v", acc.Number)
	assert.True(t, acc.Balance.IsZero())
	assert.Len(t, acc.Transactions, 0)
	assert.Equal(t, now, acc.CreatedAt)

	stored, err := svc.GetAccount(ctx, acc.Number)
	if !assert.NoError(t, err) {
		return
	}
	assert.True(t, acc.Equal(stored))
	assert.Equal(t, "John Doe", stored.Owner)
	assert.True(t, stored.Balance.IsZero())
	assert.Len(t, stored.Transactions, 0)

	other, err := svc.OpenAccount(ctx, "John Doe")
	if !assert.NoError(t, err) {
		return
	}
	assert.NotEqual(t, acc.Number, other.Number)
	assert.False(t, acc.Equal(other))
}

func TestService_Transactions(t *testing.T) {
	type testCase struct {
		name   string
		run    func(svc Service, number string) (*Receipt, error)
		assert func(t *testing.T, before *banking.Account, after *banking.Account, receipt *Receipt, err error)
	}
	tests := []func() testCase{
		func() testCase {
			return testCase{
				name: "credit",
				run: func(svc Service, number string) (*Receipt, error) {
					return svc.Credit(context.Background(), number, decimal.RequireFromString("1000.0"))
				},
				assert: func(t *testing.T, before *banking.Account, after *banking.Account, receipt *Receipt, err error) {
					if !assert.NoError(t, err) {
						return
					}
					assert.Equal(t, StatusOK, receipt.Status)
					assert.NotEmpty(t, receipt.ApprovalCode)
					assert.Equal(t, "1000", after.Balance.String())
					if assert.Len(t, after.Transactions, 1) {
						assert.Equal(t, banking.KindDeposit, after.Transactions[0].Kind)
						assert.Equal(t, receipt.ApprovalCode, after.Transactions[0].ApprovalCode)
						assert.Equal(t, after.Number, after.Transactions[0].AccountNumber)
					}
				},
			}
		},
		func() testCase {
			return testCase{
				name: "credit then debit",
				run: func(svc Service, number string) (*Receipt, error) {
					if _, err := svc.Credit(context.Background(), number, decimal.RequireFromString("1000.0")); err != nil {
						return nil, err
					}
					return svc.Debit(context.Background(), number, decimal.RequireFromString("50.0"))
				},
				assert: func(t *testing.T, before *banking.Account, after *banking.Account, receipt *Receipt, err error) {
					if !assert.NoError(t, err) {
						return
					}
					assert.Equal(t, StatusOK, receipt.Status)
					assert.Equal(t, "950", after.Balance.String())
					if assert.Len(t, after.Transactions, 2) {
						assert.Equal(t, banking.KindDeposit, after.Transactions[0].Kind)
						assert.Equal(t, banking.KindWithdrawal, after.Transactions[1].Kind)
						assert.Equal(t, receipt.ApprovalCode, after.Transactions[1].ApprovalCode)
						assert.NotEqual(t, after.Transactions[0].ApprovalCode, after.Transactions[1].ApprovalCode)
					}
				},
			}
		},
		func() testCase {
			return testCase{
				name: "debit more than balance",
				run: func(svc Service, number string) (*Receipt, error) {
					if _, err := svc.Credit(context.Background(), number, decimal.RequireFromString("1000.0")); err != nil {
						return nil, err
					}
					return svc.Debit(context.Background(), number, decimal.RequireFromString("5000.0"))
				},
				assert: func(t *testing.T, before *banking.Account, after *banking.Account, receipt *Receipt, err error) {
					assert.True(t, errors.Is(err, banking.ErrInsufficientBalance), "unexpected error: %v", err)
					assert.Nil(t, receipt)
					assert.Equal(t, "1000", after.Balance.String())
					assert.Len(t, after.Transactions, 1)
				},
			}
		},
		func() testCase {
			payee := faker.Name()
			return testCase{
				name: "pay bill",
				run: func(svc Service, number string) (*Receipt, error) {
					if _, err := svc.Credit(context.Background(), number, decimal.RequireFromString("100")); err != nil {
						return nil, err
					}
					return svc.PayBill(context.Background(), number, decimal.RequireFromString("96.5"), payee)
				},
				assert: func(t *testing.T, before *banking.Account, after *banking.Account, receipt *Receipt, err error) {
					if !assert.NoError(t, err) {
						return
					}
					assert.Equal(t, "3.5", after.Balance.String())
					if assert.Len(t, after.Transactions, 2) {
						assert.Equal(t, banking.KindPhoneBillPayment, after.Transactions[1].Kind)
						assert.Equal(t, payee, after.Transactions[1].Payee)
					}
				},
			}
		},
		func() testCase {
			return testCase{
				name: "negative amount",
				run: func(svc Service, number string) (*Receipt, error) {
					return svc.Credit(context.Background(), number, decimal.RequireFromString("-10"))
				},
				assert: func(t *testing.T, before *banking.Account, after *banking.Account, receipt *Receipt, err error) {
					assert.True(t, errors.Is(err, banking.ErrInvalidAmount), "unexpected error: %v", err)
					assert.True(t, after.Balance.IsZero())
					assert.Len(t, after.Transactions, 0)
				},
			}
		},
	}
	for _, tt := range tests {
		tt := tt()
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(WithStorage(newSQLiteStorage(t)))
			before := openAccount(t, svc, "0")
			receipt, err := tt.run(svc, before.Number)
			after, getErr := svc.GetAccount(context.Background(), before.Number)
			if !assert.NoError(t, getErr) {
				return
			}
			tt.assert(t, before, after, receipt, err)
		})
	}
}

func TestService_BalancePersisted(t *testing.T) {
	svc := NewService(WithStorage(newSQLiteStorage(t)))
	ctx := context.Background()
	acc, err := svc.OpenAccount(ctx, "John Doe")
	if !assert.NoError(t, err) {
		return
	}
	receipt, err := svc.Credit(ctx, acc.Number, decimal.RequireFromString("1000.0"))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, StatusOK, receipt.Status)

	got, err := svc.GetAccount(ctx, acc.Number)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "1000", got.Balance.String())
	assert.Len(t, got.Transactions, 1)

	if _, err := svc.Debit(ctx, acc.Number, decimal.RequireFromString("50")); !assert.NoError(t, err) {
		return
	}
	got, err = svc.GetAccount(ctx, acc.Number)
	if assert.NoError(t, err) {
		assert.Equal(t, "950", got.Balance.String())
		assert.Len(t, got.Transactions, 2)
	}
}

func TestService_TransactionTime(t *testing.T) {
	clock := tst.NewMockNowService(time.Now().UTC().Truncate(time.Second))
	svc := NewService(
		WithStorage(newSQLiteStorage(t)),
		WithNow(clock.Now),
	)
	ctx := context.Background()
	acc := openAccount(t, svc, "0")

	creditedAt := clock.Advance(time.Duration(1+rand.Intn(60)) * time.Minute)
	if _, err := svc.Credit(ctx, acc.Number, decimal.RequireFromString("100")); !assert.NoError(t, err) {
		return
	}
	debitedAt := clock.Advance(time.Duration(1+rand.Intn(60)) * time.Minute)
	if _, err := svc.Debit(ctx, acc.Number, decimal.RequireFromString("10")); !assert.NoError(t, err) {
		return
	}

	got, err := svc.GetAccount(ctx, acc.Number)
	if !assert.NoError(t, err) || !assert.Len(t, got.Transactions, 2) {
		return
	}
	assert.True(t, creditedAt.Equal(got.Transactions[0].CreatedAt), "unexpected credit time: %v", got.Transactions[0].CreatedAt)
	assert.True(t, debitedAt.Equal(got.Transactions[1].CreatedAt), "unexpected debit time: %v", got.Transactions[1].CreatedAt)
}

func TestService_UnknownAccount(t *testing.T) {
	svc := NewService(WithStorage(newSQLiteStorage(t)))
	ctx := context.Background()
	number := banking.FormatAccountNumber(100000 + rand.Intn(900000))
	amount := decimal.NewFromInt(10)

	_, err := svc.GetAccount(ctx, number)
	assert.True(t, errors.Is(err, banking.ErrAccountNotFound), "get: %v", err)
	_, err = svc.Credit(ctx, number, amount)
	assert.True(t, errors.Is(err, banking.ErrAccountNotFound), "credit: %v", err)
	_, err = svc.Debit(ctx, number, amount)
	assert.True(t, errors.Is(err, banking.ErrAccountNotFound), "debit: %v", err)
	_, err = svc.PayBill(ctx, number, amount, faker.Name())
	assert.True(t, errors.Is(err, banking.ErrAccountNotFound), "pay bill: %v", err)
}

func TestService_ApprovalCodes(t *testing.T) {
	codes := []string{faker.UUIDHyphenated(), faker.UUIDHyphenated()}
	next := 0
	svc := NewService(
		WithStorage(newSQLiteStorage(t)),
		WithApprovalCodes(func() string {
			code := codes[next]
			next++
			return code
		}),
	)
	acc := openAccount(t, svc, "0")
	ctx := context.Background()

	receipt, err := svc.Credit(ctx, acc.Number, decimal.NewFromInt(10))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, codes[0], receipt.ApprovalCode)

	receipt, err = svc.Debit(ctx, acc.Number, decimal.NewFromInt(1))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, codes[1], receipt.ApprovalCode)
}

func TestService_ConcurrentDebits(t *testing.T) {
	svc := NewService(WithStorage(newSQLiteStorage(t)))
	acc := openAccount(t, svc, "100")
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, acc.Number, decimal.NewFromInt(10))
			if err != nil {
				assert.True(t, errors.Is(err, banking.ErrInsufficientBalance), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	got, err := svc.GetAccount(ctx, acc.Number)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 10, succeeded)
	assert.True(t, got.Balance.IsZero(), "unexpected balance %v", got.Balance)
	assert.Len(t, got.Transactions, 11)
}

func TestService_WithMockStorage(t *testing.T) {
	t.Run("open account retries on duplicate number", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		storage := mocks.NewMockStorage(ctrl)

		var saved []string
		storage.EXPECT().AccountNumberExists(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
		gomock.InOrder(
			storage.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, acc *banking.Account) error {
				saved = append(saved, acc.Number)
				return errors.Wrap(dal.ErrDuplicateAccountNumber, "taken")
			}),
			storage.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, acc *banking.Account) error {
				saved = append(saved, acc.Number)
				return nil
			}),
		)

		svc := NewService(WithStorage(storage))
		acc, err := svc.OpenAccount(context.Background(), faker.Name())
		if !assert.NoError(t, err) {
			return
		}
		if assert.Len(t, saved, 2) {
			assert.Equal(t, saved[1], acc.Number)
		}
	})

	t.Run("open account storage failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		storage := mocks.NewMockStorage(ctrl)

		storage.EXPECT().AccountNumberExists(gomock.Any(), gomock.Any()).Return(false, nil)
		storage.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).Return(errors.New("storage is down"))

		svc := NewService(WithStorage(storage))
		_, err := svc.OpenAccount(context.Background(), faker.Name())
		assert.EqualError(t, err, "Failed to save account: storage is down")
	})

	t.Run("open account allocator exhausted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		storage := mocks.NewMockStorage(ctrl)

		storage.EXPECT().AccountNumberExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(3)

		svc := NewService(
			WithStorage(storage),
			WithAllocatorOpts(banking.WithMaxAttempts(3)),
		)
		_, err := svc.OpenAccount(context.Background(), faker.Name())
		assert.True(t, errors.Is(err, banking.ErrAccountNumbersExhausted), "unexpected error: %v", err)
	})

	t.Run("update failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		storage := mocks.NewMockStorage(ctrl)

		storageErr := errors.New("storage is down " + faker.Word())
		number := banking.FormatAccountNumber(100000 + rand.Intn(900000))
		storage.EXPECT().UpdateAccount(gomock.Any(), number, gomock.Any()).Return(nil, storageErr)

		svc := NewService(WithStorage(storage))
		receipt, err := svc.Debit(context.Background(), number, decimal.NewFromInt(1))
		assert.Nil(t, receipt)
		assert.Equal(t, storageErr, err)
	})

	t.Run("mutation runs against loaded account", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		storage := mocks.NewMockStorage(ctrl)

		acc := banking.NewAccount(banking.FormatAccountNumber(100000+rand.Intn(900000)), faker.Name())
		acc.Balance = decimal.NewFromInt(20)
		storage.EXPECT().UpdateAccount(gomock.Any(), acc.Number, gomock.Any()).DoAndReturn(
			func(ctx context.Context, number string, mutate dal.AccountMutation) (*banking.Account, error) {
				if err := mutate(acc); err != nil {
					return nil, err
				}
				return acc, nil
			})

		svc := NewService(WithStorage(storage))
		receipt, err := svc.PayBill(context.Background(), acc.Number, decimal.NewFromInt(15), "Phone Co")
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "5", acc.Balance.String())
		if assert.Len(t, acc.Transactions, 1) {
			assert.Equal(t, receipt.ApprovalCode, acc.Transactions[0].ApprovalCode)
			assert.Equal(t, "Phone Co", acc.Transactions[0].Payee)
		}
	})
}
