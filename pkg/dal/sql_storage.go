package dal

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

type sqlQueryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type sqlStorage struct {
	db *sql.DB
}

func (s *sqlStorage) Setup(ctx context.Context) error {
	logger.Info(ctx, "Setup SQL storage")
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return errors.Wrap(err, "Failed to setup storage")
}

func (s *sqlStorage) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM accounts WHERE account_number = $1`, number).Scan(&count); err != nil {
		return false, errors.Wrapf(err, "Failed to check account number %v", number)
	}
	return count > 0, nil
}

func (s *sqlStorage) findAccount(ctx context.Context, q sqlQueryer, number string) (*banking.Account, error) {
	acc := &banking.Account{}
	err := q.QueryRowContext(ctx, `
	SELECT
		id, account_number, owner, balance, created_at
	FROM accounts WHERE account_number = $1`, number).Scan(
		&acc.ID,
		&acc.Number,
		&acc.Owner,
		&acc.Balance,
		&acc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(banking.ErrAccountNotFound, "Unknown account: %v", number)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load account %v", number)
	}

	rows, err := q.QueryContext(ctx, `
	SELECT
		id, approval_code, kind, amount, account_number, payee, created_at
	FROM transactions WHERE account_id = $1
	ORDER BY rowid`, acc.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load transactions of %v", number)
	}
	defer rows.Close()

	acc.Transactions = []banking.Transaction{}
	for rows.Next() {
		var trx banking.Transaction
		var kind string
		if err := rows.Scan(
			&trx.ID,
			&trx.ApprovalCode,
			&kind,
			&trx.Amount,
			&trx.AccountNumber,
			&trx.Payee,
			&trx.CreatedAt,
		); err != nil {
			return nil, errors.Wrapf(err, "Failed to read transaction of %v", number)
		}
		trx.Kind = kindOf(kind)
		acc.Transactions = append(acc.Transactions, trx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "Failed to load transactions of %v", number)
	}
	return acc, nil
}

func (s *sqlStorage) insertTransactions(ctx context.Context, q sqlQueryer, acc *banking.Account, transactions []banking.Transaction) error {
	for _, trx := range transactions {
		if _, err := q.ExecContext(ctx, `
		INSERT INTO transactions(
			id,
			account_id,
			account_number,
			approval_code,
			kind,
			amount,
			payee,
			created_at
		)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT(id) DO NOTHING
		`,
			trx.ID, acc.ID, acc.Number, trx.ApprovalCode, string(trx.Kind), trx.Amount.String(), trx.Payee, trx.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "Failed to insert transaction %v", trx.ID)
		}
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (s *sqlStorage) FindAccountByNumber(ctx context.Context, number string) (*banking.Account, error) {
	return s.findAccount(ctx, s.db, number)
}

func (s *sqlStorage) SaveAccount(ctx context.Context, acc *banking.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO accounts(id, account_number, owner, balance, created_at)
	VALUES($1, $2, $3, $4, $5)
	ON CONFLICT(id) DO UPDATE
	SET owner=$3, balance=$4
	`,
		acc.ID, acc.Number, acc.Owner, acc.Balance.String(), acc.CreatedAt); err != nil {
		if isSQLiteUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateAccountNumber, "Failed to save account %v", acc.Number)
		}
		return errors.Wrapf(err, "Failed to save account %v", acc.Number)
	}
	if err := s.insertTransactions(ctx, tx, acc, acc.Transactions); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "Failed to commit account")
}

func (s *sqlStorage) UpdateAccount(ctx context.Context, number string, mutate AccountMutation) (*banking.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to begin transaction")
	}
	defer tx.Rollback()

	acc, err := s.findAccount(ctx, tx, number)
	if err != nil {
		return nil, err
	}
	stored := len(acc.Transactions)
	if err := mutate(acc); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE accounts SET balance=$1 WHERE id=$2`, acc.Balance.String(), acc.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to update account %v", number)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to update account %v", number)
	}
	if err := checkSingleRowUpdated(affected, number); err != nil {
		return nil, err
	}
	if err := s.insertTransactions(ctx, tx, acc, acc.Transactions[stored:]); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "Failed to commit account update")
	}
	return acc, nil
}

func (s *sqlStorage) Close() error {
	return s.db.Close()
}

// SQLStorageOpt is an option of SQL storage
type SQLStorageOpt func(s *sqlStorage)

// WithSQLDb will set an explicit db instance for a storage
func WithSQLDb(db *sql.DB) SQLStorageOpt {
	return func(s *sqlStorage) {
		s.db = db
	}
}

// OpenSQLiteDb opens sqlite db. In memory db is limited to a single
// connection, otherwise each connection would get its own empty db.
// File dbs should use _txlock=immediate to serialize updates
func OpenSQLiteDb(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open sqlite db")
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewSQLStorage returns an instance of a local storage
func NewSQLStorage(opts ...SQLStorageOpt) (Storage, error) {
	storage := &sqlStorage{}
	for _, opt := range opts {
		opt(storage)
	}
	if storage.db == nil {
		return nil, errors.New("SQL db is not provided")
	}
	return storage, nil
}
