package dal

import (
	"context"
	"embed"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/banking"
)

//go:embed migrations/postgres/*.sql
var pgMigrations embed.FS

const pgUniqueViolation = "23505"

type pgQueryer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type pgStorage struct {
	pool *pgxpool.Pool
	dsn  string
}

// RunMigrations applies all pending migrations from a given source
func RunMigrations(ctx context.Context, databaseURL string, migrationsFS fs.FS) error {
	d, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return errors.Wrap(err, "Failed to create migration source")
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return errors.Wrap(err, "Failed to create migrate instance")
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "Failed to run migrations")
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.WithError(err).Warn(ctx, "Migrations applied, failed to read schema version")
		return nil
	}
	logger.WithData(map[string]interface{}{
		"version": version,
		"dirty":   dirty,
	}).Info(ctx, "Migrations applied")
	return nil
}

func (s *pgStorage) Setup(ctx context.Context) error {
	logger.Info(ctx, "Setup postgres storage")
	migrations, err := fs.Sub(pgMigrations, "migrations/postgres")
	if err != nil {
		return errors.Wrap(err, "Failed to load migrations")
	}
	return RunMigrations(ctx, s.dsn, migrations)
}

func (s *pgStorage) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `
	SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)`, number).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "Failed to check account number %v", number)
	}
	return exists, nil
}

func (s *pgStorage) findAccount(ctx context.Context, q pgQueryer, number string, forUpdate bool) (*banking.Account, error) {
	query := `
	SELECT
		id::text, account_number, owner, balance::text, created_at
	FROM accounts WHERE account_number = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	acc := &banking.Account{}
	var balance string
	err := q.QueryRow(ctx, query, number).Scan(
		&acc.ID,
		&acc.Number,
		&acc.Owner,
		&balance,
		&acc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(banking.ErrAccountNotFound, "Unknown account: %v", number)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load account %v", number)
	}
	if acc.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse balance of %v", number)
	}
	acc.CreatedAt = acc.CreatedAt.UTC()

	rows, err := q.Query(ctx, `
	SELECT
		id::text, approval_code, kind, amount::text, account_number, payee, created_at
	FROM transactions WHERE account_id = $1
	ORDER BY seq`, acc.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load transactions of %v", number)
	}
	defer rows.Close()

	acc.Transactions = []banking.Transaction{}
	for rows.Next() {
		var trx banking.Transaction
		var kind, amount string
		var createdAt time.Time
		if err := rows.Scan(
			&trx.ID,
			&trx.ApprovalCode,
			&kind,
			&amount,
			&trx.AccountNumber,
			&trx.Payee,
			&createdAt,
		); err != nil {
			return nil, errors.Wrapf(err, "Failed to read transaction of %v", number)
		}
		if trx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errors.Wrapf(err, "Failed to parse amount of %v", trx.ID)
		}
		trx.Kind = kindOf(kind)
		trx.CreatedAt = createdAt.UTC()
		acc.Transactions = append(acc.Transactions, trx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "Failed to load transactions of %v", number)
	}
	return acc, nil
}

func (s *pgStorage) insertTransactions(ctx context.Context, q pgQueryer, acc *banking.Account, transactions []banking.Transaction) error {
	for _, trx := range transactions {
		if _, err := q.Exec(ctx, `
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
		VALUES($1::uuid, $2::uuid, $3, $4, $5, $6::numeric, $7, $8)
		ON CONFLICT(id) DO NOTHING
		`,
			trx.ID, acc.ID, acc.Number, trx.ApprovalCode, string(trx.Kind), trx.Amount.String(), trx.Payee, trx.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "Failed to insert transaction %v", trx.ID)
		}
	}
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

func (s *pgStorage) FindAccountByNumber(ctx context.Context, number string) (*banking.Account, error) {
	return s.findAccount(ctx, s.pool, number, false)
}

func (s *pgStorage) SaveAccount(ctx context.Context, acc *banking.Account) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
	INSERT INTO accounts(id, account_number, owner, balance, created_at)
	VALUES($1::uuid, $2, $3, $4::numeric, $5)
	ON CONFLICT(id) DO UPDATE
	SET owner=EXCLUDED.owner, balance=EXCLUDED.balance
	`,
		acc.ID, acc.Number, acc.Owner, acc.Balance.String(), acc.CreatedAt); err != nil {
		if isPgUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateAccountNumber, "Failed to save account %v", acc.Number)
		}
		return errors.Wrapf(err, "Failed to save account %v", acc.Number)
	}
	if err := s.insertTransactions(ctx, tx, acc, acc.Transactions); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "Failed to commit account")
}

func (s *pgStorage) UpdateAccount(ctx context.Context, number string, mutate AccountMutation) (*banking.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	acc, err := s.findAccount(ctx, tx, number, true)
	if err != nil {
		return nil, err
	}
	stored := len(acc.Transactions)
	if err := mutate(acc); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
	UPDATE accounts SET balance=$1::numeric WHERE id=$2::uuid`, acc.Balance.String(), acc.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to update account %v", number)
	}
	if err := checkSingleRowUpdated(tag.RowsAffected(), number); err != nil {
		return nil, err
	}
	if err := s.insertTransactions(ctx, tx, acc, acc.Transactions[stored:]); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "Failed to commit account update")
	}
	return acc, nil
}

func (s *pgStorage) Close() error {
	s.pool.Close()
	return nil
}

// NewPgPool creates a connection pool and makes sure the db is reachable
func NewPgPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse database config")
	}

	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "Failed to ping database")
	}

	return pool, nil
}

// PgStorageOpt is an option of postgres storage
type PgStorageOpt func(s *pgStorage)

// WithPgPool will set an explicit pool for a storage
func WithPgPool(pool *pgxpool.Pool) PgStorageOpt {
	return func(s *pgStorage) {
		s.pool = pool
	}
}

// WithPgDSN sets a url used to run migrations
func WithPgDSN(dsn string) PgStorageOpt {
	return func(s *pgStorage) {
		s.dsn = dsn
	}
}

// NewPgStorage returns an instance of a postgres storage
func NewPgStorage(opts ...PgStorageOpt) (Storage, error) {
	storage := &pgStorage{}
	for _, opt := range opts {
		opt(storage)
	}
	if storage.pool == nil {
		return nil, errors.New("Postgres pool is not provided")
	}
	return storage, nil
}
