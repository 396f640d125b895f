package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/lumenbank/apiserver/types"
)

// AccountRepository handles persistence for accounts and their ledger.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const selectAccount = `
		SELECT id, user_id, account_number, account_type, balance, created_at
		FROM accounts`

const selectTransaction = `
		SELECT id, account_id, user_id, type, amount, description, idempotency_key, created_at
		FROM transactions`

func scanAccount(row rowScanner) (types.Account, error) {
	var account types.Account
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.AccountNumber,
		&account.AccountType,
		&account.Balance,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func scanTransaction(row rowScanner) (types.Transaction, error) {
	var txn types.Transaction
	var key sql.NullString
	err := row.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.UserID,
		&txn.Type,
		&txn.Amount,
		&txn.Description,
		&key,
		&txn.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Transaction{}, ErrNotFound
		}
		return types.Transaction{}, err
	}
	txn.IdempotencyKey = key.String
	return txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateAccount inserts account and, when opening is non-nil, its opening
// ledger entry in a single database transaction.
func (r *AccountRepository) CreateAccount(ctx context.Context, account types.Account, opening *types.Transaction) (types.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Account{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
		INSERT INTO accounts (id, user_id, account_number, account_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(
		ctx,
		query,
		account.ID,
		account.UserID,
		account.AccountNumber,
		account.AccountType,
		account.Balance,
		account.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Account{}, ErrConflict
		}
		return types.Account{}, err
	}

	if opening != nil {
		if err := insertTransaction(ctx, tx, *opening); err != nil {
			return types.Account{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) GetAccount(ctx context.Context, id string) (types.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, selectAccount+` WHERE id = $1`, id))
}

// ListAccountsByOwner returns the user's accounts in the order they were opened.
func (r *AccountRepository) ListAccountsByOwner(ctx context.Context, userID string) ([]types.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount+` WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []types.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// ApplyEntry locks the caller's account row, runs apply against it and
// commits the returned transaction together with the new balance.
func (r *AccountRepository) ApplyEntry(
	ctx context.Context,
	accountID, ownerID, idempotencyKey string,
	apply func(types.Account) (types.Transaction, error),
) (types.LedgerReceipt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.LedgerReceipt{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	account, err := scanAccount(tx.QueryRowContext(
		ctx,
		selectAccount+` WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		accountID,
		ownerID,
	))
	if err != nil {
		return types.LedgerReceipt{}, err
	}

	if idempotencyKey != "" {
		prior, err := scanTransaction(tx.QueryRowContext(
			ctx,
			selectTransaction+` WHERE account_id = $1 AND idempotency_key = $2`,
			accountID,
			idempotencyKey,
		))
		if err == nil {
			return types.LedgerReceipt{Transaction: prior, Balance: account.Balance, Replayed: true}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return types.LedgerReceipt{}, err
		}
	}

	txn, err := apply(account)
	if err != nil {
		return types.LedgerReceipt{}, err
	}
	if txn.AccountID != accountID {
		return types.LedgerReceipt{}, fmt.Errorf("entry for account %q applied to %q", txn.AccountID, accountID)
	}

	balance := account.Balance.Add(txn.Type.Delta(txn.Amount))
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance, accountID); err != nil {
		return types.LedgerReceipt{}, err
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return types.LedgerReceipt{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.LedgerReceipt{}, err
	}
	return types.LedgerReceipt{Transaction: txn, Balance: balance}, nil
}

// ListTransactionsByAccounts returns entries on the given accounts in
// commit order.
func (r *AccountRepository) ListTransactionsByAccounts(ctx context.Context, accountIDs []string) ([]types.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, selectTransaction+` WHERE account_id = ANY($1) ORDER BY seq`, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []types.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func insertTransaction(ctx context.Context, tx *sql.Tx, txn types.Transaction) error {
	const query = `
		INSERT INTO transactions (id, account_id, user_id, type, amount, description, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.ExecContext(
		ctx,
		query,
		txn.ID,
		txn.AccountID,
		txn.UserID,
		txn.Type,
		txn.Amount,
		txn.Description,
		nullString(txn.IdempotencyKey),
		txn.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}
