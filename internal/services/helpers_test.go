package services

import (
	"context"
	"testing"

	"github.com/lumenbank/apiserver/internal/store/jsonfile"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	store    *jsonfile.Store
	users    *UserService
	accounts *AccountService
	ledger   *LedgerService
	history  *HistoryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := jsonfile.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	history := NewHistoryService(s, nil)
	return &testEnv{
		store:    s,
		users:    NewUserService(s, nil).WithHashCost(bcrypt.MinCost),
		accounts: NewAccountService(s, nil).WithHistory(history),
		ledger:   NewLedgerService(s, nil).WithHistory(history),
		history:  history,
	}
}

func (e *testEnv) register(t *testing.T, email string) types.User {
	t.Helper()

	user, err := e.users.Register(context.Background(), Registration{
		FirstName:       "Test",
		LastName:        "User",
		Email:           email,
		Password:        "secret",
		ConfirmPassword: "secret",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func (e *testEnv) openAccount(t *testing.T, userID, kind, deposit string) types.Account {
	t.Helper()

	account, err := e.accounts.Create(context.Background(), userID, kind, decimal.RequireFromString(deposit))
	if err != nil {
		t.Fatalf("open %s account: %v", kind, err)
	}
	return account
}

func (e *testEnv) balance(t *testing.T, account types.Account) decimal.Decimal {
	t.Helper()

	got, err := e.accounts.Get(context.Background(), account.ID, account.UserID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return got.Balance
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
