package dal

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
)

var accountsBucket = []byte("accounts")

type boltTransaction struct {
	ID           string          `json:"id"`
	ApprovalCode string          `json:"approvalCode"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Payee        string          `json:"payee,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type boltAccount struct {
	ID           string            `json:"id"`
	Number       string            `json:"accountNumber"`
	Owner        string            `json:"owner"`
	Balance      decimal.Decimal   `json:"balance"`
	CreatedAt    time.Time         `json:"createdAt"`
	Transactions []boltTransaction `json:"transactions"`
}

func newBoltAccount(acc *banking.Account) *boltAccount {
	rec := &boltAccount{
		ID:           acc.ID,
		Number:       acc.Number,
		Owner:        acc.Owner,
		Balance:      acc.Balance,
		CreatedAt:    acc.CreatedAt,
		Transactions: make([]boltTransaction, 0, len(acc.Transactions)),
	}
	for _, trx := range acc.Transactions {
		rec.Transactions = append(rec.Transactions, boltTransaction{
			ID:           trx.ID,
			ApprovalCode: trx.ApprovalCode,
			Kind:         string(trx.Kind),
			Amount:       trx.Amount,
			Payee:        trx.Payee,
			CreatedAt:    trx.CreatedAt,
		})
	}
	return rec
}

func (rec *boltAccount) toAccount() *banking.Account {
	acc := &banking.Account{
		ID:           rec.ID,
		Number:       rec.Number,
		Owner:        rec.Owner,
		Balance:      rec.Balance,
		CreatedAt:    rec.CreatedAt,
		Transactions: make([]banking.Transaction, 0, len(rec.Transactions)),
	}
	for _, trx := range rec.Transactions {
		acc.Transactions = append(acc.Transactions, banking.Transaction{
			ID:            trx.ID,
			ApprovalCode:  trx.ApprovalCode,
			Kind:          kindOf(trx.Kind),
			Amount:        trx.Amount,
			CreatedAt:     trx.CreatedAt,
			AccountNumber: rec.Number,
			Payee:         trx.Payee,
		})
	}
	return acc
}

type boltStorage struct {
	db *bolt.DB
}

func (s *boltStorage) Setup(ctx context.Context) error {
	logger.Info(ctx, "Setup bolt storage")
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	return errors.Wrap(err, "Failed to setup storage")
}

func getBoltAccount(tx *bolt.Tx, number string) (*boltAccount, error) {
	b := tx.Bucket(accountsBucket)
	if b == nil {
		return nil, errors.New("Storage is not initialized")
	}
	v := b.Get([]byte(number))
	if v == nil {
		return nil, errors.Wrapf(banking.ErrAccountNotFound, "Unknown account: %v", number)
	}
	var rec boltAccount
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode account %v", number)
	}
	return &rec, nil
}

func putBoltAccount(tx *bolt.Tx, acc *banking.Account) error {
	data, err := json.Marshal(newBoltAccount(acc))
	if err != nil {
		return errors.Wrapf(err, "Failed to encode account %v", acc.Number)
	}
	return tx.Bucket(accountsBucket).Put([]byte(acc.Number), data)
}

func (s *boltStorage) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	exists := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucket)
		if b == nil {
			return errors.New("Storage is not initialized")
		}
		exists = b.Get([]byte(number)) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "Failed to check account number %v", number)
	}
	return exists, nil
}

func (s *boltStorage) FindAccountByNumber(ctx context.Context, number string) (*banking.Account, error) {
	var acc *banking.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getBoltAccount(tx, number)
		if err != nil {
			return err
		}
		acc = rec.toAccount()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// SaveAccount replaces the stored record. Numbers are keys so an attempt
// to store a different account under a taken number is rejected
func (s *boltStorage) SaveAccount(ctx context.Context, acc *banking.Account) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		existing, err := getBoltAccount(tx, acc.Number)
		if err != nil && !errors.Is(err, banking.ErrAccountNotFound) {
			return err
		}
		if existing != nil && existing.ID != acc.ID {
			return errors.Wrapf(ErrDuplicateAccountNumber, "Failed to save account %v", acc.Number)
		}
		return putBoltAccount(tx, acc)
	})
}

func (s *boltStorage) UpdateAccount(ctx context.Context, number string, mutate AccountMutation) (*banking.Account, error) {
	var acc *banking.Account
	err := s.db.Update(func(tx *bolt.Tx) error {
		rec, err := getBoltAccount(tx, number)
		if err != nil {
			return err
		}
		acc = rec.toAccount()
		if err := mutate(acc); err != nil {
			return err
		}
		return putBoltAccount(tx, acc)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *boltStorage) Close() error {
	return s.db.Close()
}

// NewBoltStorage opens (or creates) a bolt db file at a given path
func NewBoltStorage(path string) (Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open bolt db %v", path)
	}
	return &boltStorage{db: db}, nil
}
