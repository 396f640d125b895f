package jsonfile

import (
	"context"
	"fmt"
	"slices"

	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
)

// CreateAccount appends account and, when opening is non-nil, its opening
// ledger entry in the same commit.
func (s *Store) CreateAccount(ctx context.Context, account types.Account, opening *types.Transaction) (types.Account, error) {
	if err := ctx.Err(); err != nil {
		return types.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.ID == account.ID || existing.AccountNumber == account.AccountNumber {
			return types.Account{}, store.ErrConflict
		}
	}

	applied := ""
	txns := s.transactions
	if opening != nil {
		applied = opening.ID
		txns = append(slices.Clip(s.transactions), *opening)
		if err := s.persist(transactionsFile, txns); err != nil {
			return types.Account{}, err
		}
	}

	accounts := append(slices.Clip(s.accounts), accountRecord{Account: account, AppliedThrough: &applied})
	if err := s.persist(accountsFile, accounts); err != nil {
		if opening != nil {
			// Take the opening entry back out of the ledger file. If that
			// fails too, the entry is orphaned: recovery skips entries for
			// accounts that do not exist.
			if rerr := s.persist(transactionsFile, txns[:len(txns)-1]); rerr != nil {
				s.logger.Log("msg", "roll back opening entry", "account", account.ID, "err", rerr)
			}
		}
		return types.Account{}, err
	}

	s.accounts = accounts
	s.transactions = txns
	return account, nil
}

// GetAccount returns the account with the given id.
func (s *Store) GetAccount(ctx context.Context, id string) (types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.accountIndex(id); i >= 0 {
		return s.accounts[i].Account, nil
	}
	return types.Account{}, store.ErrNotFound
}

// ListAccountsByOwner returns the user's accounts in the order they were opened.
func (s *Store) ListAccountsByOwner(ctx context.Context, userID string) ([]types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a.Account)
		}
	}
	return out, nil
}

// ApplyEntry runs apply against the current state of the caller's account
// and commits the returned transaction together with the balance change.
//
// Writers on the same account are serialized for the whole call, so the
// balance apply sees cannot change before the commit. A non-empty
// idempotencyKey that matches an earlier entry on the account short-circuits
// with that entry and Replayed set.
func (s *Store) ApplyEntry(
	ctx context.Context,
	accountID, ownerID, idempotencyKey string,
	apply func(types.Account) (types.Transaction, error),
) (types.LedgerReceipt, error) {
	if err := ctx.Err(); err != nil {
		return types.LedgerReceipt{}, err
	}

	unlock := s.accountLocks.Lock(accountID)
	defer unlock()

	s.mu.RLock()
	i := s.accountIndex(accountID)
	if i < 0 || s.accounts[i].UserID != ownerID {
		s.mu.RUnlock()
		return types.LedgerReceipt{}, store.ErrNotFound
	}
	account := s.accounts[i].Account
	if idempotencyKey != "" {
		for _, txn := range s.transactions {
			if txn.AccountID == accountID && txn.IdempotencyKey == idempotencyKey {
				s.mu.RUnlock()
				return types.LedgerReceipt{Transaction: txn, Balance: account.Balance, Replayed: true}, nil
			}
		}
	}
	s.mu.RUnlock()

	txn, err := apply(account)
	if err != nil {
		return types.LedgerReceipt{}, err
	}
	if txn.AccountID != accountID {
		return types.LedgerReceipt{}, fmt.Errorf("entry for account %q applied to %q", txn.AccountID, accountID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i = s.accountIndex(accountID)
	accounts := slices.Clone(s.accounts)
	balance := accounts[i].Balance.Add(txn.Type.Delta(txn.Amount))
	accounts[i].Balance = balance
	applied := txn.ID
	accounts[i].AppliedThrough = &applied
	txns := append(slices.Clip(s.transactions), txn)

	// The entry is committed once it is in the ledger file. A failed
	// accounts write leaves a stale balance on disk that the next accounts
	// write or recoverBalances on the next open brings up to date.
	if err := s.persist(transactionsFile, txns); err != nil {
		return types.LedgerReceipt{}, err
	}
	s.accounts = accounts
	s.transactions = txns

	if err := s.persist(accountsFile, accounts); err != nil {
		s.logger.Log("msg", "accounts write failed after ledger commit", "account", accountID, "transaction", txn.ID, "err", err)
	}
	return types.LedgerReceipt{Transaction: txn, Balance: balance}, nil
}

// ListTransactionsByAccounts returns entries on the given accounts in
// commit order.
func (s *Store) ListTransactionsByAccounts(ctx context.Context, accountIDs []string) ([]types.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	want := make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Transaction
	for _, txn := range s.transactions {
		if _, ok := want[txn.AccountID]; ok {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (s *Store) accountIndex(id string) int {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return i
		}
	}
	return -1
}

// recoverBalances replays ledger entries committed after an account's
// AppliedThrough marker. Such entries exist only when a previous process
// stopped between writing the ledger and writing the accounts file.
func (s *Store) recoverBalances() error {
	byAccount := make(map[string][]types.Transaction)
	for _, txn := range s.transactions {
		byAccount[txn.AccountID] = append(byAccount[txn.AccountID], txn)
	}

	repaired := 0
	for i := range s.accounts {
		rec := &s.accounts[i]
		if rec.AppliedThrough == nil {
			continue
		}

		entries := byAccount[rec.ID]
		start := 0
		if marker := *rec.AppliedThrough; marker != "" {
			pos := slices.IndexFunc(entries, func(t types.Transaction) bool { return t.ID == marker })
			if pos < 0 {
				return fmt.Errorf("account %s: ledger is missing applied entry %s", rec.ID, marker)
			}
			start = pos + 1
		}

		for _, txn := range entries[start:] {
			rec.Balance = rec.Balance.Add(txn.Type.Delta(txn.Amount))
			applied := txn.ID
			rec.AppliedThrough = &applied
			repaired++
			s.logger.Log("msg", "replayed ledger entry", "account", rec.ID, "transaction", txn.ID)
		}
	}

	if repaired == 0 {
		return nil
	}
	return s.persist(accountsFile, s.accounts)
}
