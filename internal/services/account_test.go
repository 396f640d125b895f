package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

func TestAccountService_Create__minimums(t *testing.T) {
	cases := []struct {
		name    string
		kind    string
		deposit string
		err     error
		message string
	}{
		{"checking at minimum", "Checking", "25.00", nil, ""},
		{"checking below minimum", "Checking", "24.99", ErrMinimumDeposit, "Checking accounts require a minimum deposit of $25"},
		{"checking with nothing", "Checking", "0", ErrMinimumDeposit, "Checking accounts require a minimum deposit of $25"},
		{"savings at minimum", "Savings", "500.00", nil, ""},
		{"savings below minimum", "Savings", "499.99", ErrMinimumDeposit, "Savings accounts require a minimum deposit of $500"},
		{"lowercase type", "savings", "750", nil, ""},
		{"unknown type", "Brokerage", "1000", ErrInvalidAccountType, ""},
		{"empty type", "", "1000", ErrInvalidAccountType, ""},
		{"negative deposit", "Checking", "-5", ErrNegativeDeposit, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			user := env.register(t, "owner@example.com")

			account, err := env.accounts.Create(context.Background(), user.ID, tc.kind, dec(tc.deposit))
			if !errors.Is(err, tc.err) {
				t.Fatalf("got %v, expected %v", err, tc.err)
			}
			if tc.message != "" && err.Error() != tc.message {
				t.Errorf("got message %q", err.Error())
			}
			if tc.err == nil {
				if !account.Balance.Equal(dec(tc.deposit)) {
					t.Errorf("got balance %s", account.Balance)
				}
				if len(account.AccountNumber) != 10 {
					t.Errorf("got account number %q", account.AccountNumber)
				}
			}
		})
	}
}

func TestAccountService_Create__openingDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "owner@example.com")

	account := env.openAccount(t, user.ID, "Checking", "25")

	accounts, err := env.accounts.ListByOwner(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0].ID != account.ID {
		t.Fatalf("got %+v", accounts)
	}

	history, err := env.history.HistoryFor(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d entries", len(history))
	}
	opening := history[0]
	if opening.Type != types.TransactionDeposit || !opening.Amount.Equal(dec("25")) || opening.Description != "Initial deposit" {
		t.Errorf("got %+v", opening)
	}
}

func TestAccountService_Create__numberCollision(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "owner@example.com")

	numbers := []string{"1111111111", "1111111111", "2222222222"}
	env.accounts.newNumber = func() (string, error) {
		n := numbers[0]
		numbers = numbers[1:]
		return n, nil
	}

	first := env.openAccount(t, user.ID, "Checking", "25")
	second := env.openAccount(t, user.ID, "Checking", "25")
	if first.AccountNumber != "1111111111" || second.AccountNumber != "2222222222" {
		t.Errorf("got %s and %s", first.AccountNumber, second.AccountNumber)
	}
}

func TestAccountService_Create__numberExhausted(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "owner@example.com")

	env.accounts.newNumber = func() (string, error) { return "1111111111", nil }
	env.openAccount(t, user.ID, "Checking", "25")

	_, err := env.accounts.Create(context.Background(), user.ID, "Checking", decimal.NewFromInt(25))
	if !errors.Is(err, ErrAccountNumberExhausted) {
		t.Errorf("got %v", err)
	}
}

func TestAccountService_Get__ownerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	account := env.openAccount(t, alice.ID, "Savings", "500")
	if _, err := env.accounts.Get(ctx, account.ID, bob.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("got %v", err)
	}
	if _, err := env.accounts.Get(ctx, "missing", alice.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("got %v", err)
	}

	accounts, err := env.accounts.ListByOwner(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if accounts == nil || len(accounts) != 0 {
		t.Errorf("got %#v", accounts)
	}
}

func TestRandomAccountNumber(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := randomAccountNumber()
		if err != nil {
			t.Fatal(err)
		}
		if len(n) != 10 {
			t.Fatalf("got %q", n)
		}
		for _, c := range n {
			if c < '0' || c > '9' {
				t.Fatalf("got %q", n)
			}
		}
	}
}
