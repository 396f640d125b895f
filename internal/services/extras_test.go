package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lumenbank/apiserver/internal/storage"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T {
	return &v
}

func TestNotificationService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(env.store, nil)

	n, err := svc.Create(ctx, "u1", NewNotification{Title: " Hello ", Message: "World"})
	if err != nil {
		t.Fatal(err)
	}
	if n.Title != "Hello" || n.Type != types.NotificationInfo || n.Priority != types.PriorityMedium || n.Read {
		t.Errorf("got %+v", n)
	}

	if _, err := svc.Create(ctx, "u1", NewNotification{Title: "t"}); !errors.Is(err, ErrNotificationInvalid) {
		t.Errorf("got %v", err)
	}
	if _, err := svc.Create(ctx, "u1", NewNotification{Title: "t", Message: "m", Type: "loud"}); !errors.Is(err, ErrNotificationType) {
		t.Errorf("got %v", err)
	}
	if _, err := svc.Create(ctx, "u1", NewNotification{Title: "t", Message: "m", Priority: "urgent"}); !errors.Is(err, ErrNotificationType) {
		t.Errorf("got %v", err)
	}

	if err := svc.SetRead(ctx, "u1", n.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetRead(ctx, "u2", n.ID, true); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("got %v", err)
	}

	items, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !items[0].Read {
		t.Errorf("got %+v", items)
	}
	none, err := svc.List(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("got %#v", none)
	}
}

func TestNotificationService_List__limit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(env.store, nil)

	for i := 0; i < notificationListLimit+5; i++ {
		if _, err := svc.Create(ctx, "u1", NewNotification{Title: "t", Message: "m"}); err != nil {
			t.Fatal(err)
		}
	}
	items, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != notificationListLimit {
		t.Errorf("got %d notifications", len(items))
	}
}

func TestNotificationService_NotifyTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(env.store, nil)

	event := LedgerEvent{
		TransactionID: "txn-1",
		UserID:        "u1",
		AccountNumber: "0012345678",
		Type:          types.TransactionWithdrawal,
		Amount:        dec("10"),
		Balance:       dec("15"),
	}
	n, err := svc.NotifyTransaction(ctx, event)
	if err != nil {
		t.Fatal(err)
	}
	want := "$10.00 was withdrawn from account ****5678. New balance: $15.00."
	if n.Title != "Withdrawal processed" || n.Message != want {
		t.Errorf("got %q / %q", n.Title, n.Message)
	}

	if _, err := svc.NotifyTransaction(ctx, LedgerEvent{Type: types.TransactionDeposit, TransactionID: "txn-2"}); err == nil {
		t.Error("expected an error for an event without a user")
	}
	if _, err := svc.NotifyTransaction(ctx, LedgerEvent{Type: types.TransactionDeposit, UserID: "u1"}); err == nil {
		t.Error("expected an error for an event without a transaction")
	}
}

func TestNotificationService_NotifyTransaction__redelivered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewNotificationService(env.store, nil)

	event := LedgerEvent{TransactionID: "txn-1", UserID: "u1", Type: types.TransactionDeposit, Amount: dec("5"), Balance: dec("30")}
	first, err := svc.NotifyTransaction(ctx, event)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.NotifyTransaction(ctx, event); !errors.Is(err, ErrNotificationExists) {
		t.Errorf("second delivery: got %v", err)
	}

	// a different transaction still gets its own notification
	other := event
	other.TransactionID = "txn-2"
	second, err := svc.NotifyTransaction(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Errorf("two transactions share notification id %s", first.ID)
	}

	items, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("got %d notifications, want 2", len(items))
	}
}

func TestBillSplitService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewBillSplitService(env.store, nil)

	if _, err := svc.Create(ctx, "u1", BillSplitInput{Title: ptr("Dinner")}); !errors.Is(err, ErrBillSplitInvalid) {
		t.Fatalf("got %v", err)
	}
	if _, err := svc.Create(ctx, "u1", BillSplitInput{Title: ptr("Dinner"), Amount: ptr(dec("-1"))}); !errors.Is(err, ErrBillSplitInvalid) {
		t.Fatalf("got %v", err)
	}

	split, err := svc.Create(ctx, "u1", BillSplitInput{
		Title:  ptr("Dinner"),
		Amount: ptr(dec("90.005")),
		Participants: []types.Participant{
			{ID: "u2", Share: dec("45")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if split.Status != types.BillSplitPending || !split.Amount.Equal(dec("90.01")) || split.CreatedBy != "u1" {
		t.Errorf("got %+v", split)
	}

	// participants see the split and may update it; strangers may not
	for _, user := range []string{"u1", "u2"} {
		items, err := svc.List(ctx, user)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 {
			t.Errorf("%s sees %d splits", user, len(items))
		}
	}
	if items, _ := svc.List(ctx, "u3"); items == nil || len(items) != 0 {
		t.Errorf("got %#v", items)
	}
	if _, err := svc.Update(ctx, "u3", split.ID, BillSplitInput{Status: ptr("completed")}); !errors.Is(err, ErrBillSplitNotFound) {
		t.Errorf("got %v", err)
	}
	if _, err := svc.Update(ctx, "u1", "missing", BillSplitInput{}); !errors.Is(err, ErrBillSplitNotFound) {
		t.Errorf("got %v", err)
	}
	if _, err := svc.Update(ctx, "u2", split.ID, BillSplitInput{Status: ptr("lost")}); !errors.Is(err, ErrBillSplitInvalid) {
		t.Errorf("got %v", err)
	}

	updated, err := svc.Update(ctx, "u2", split.ID, BillSplitInput{Status: ptr("Completed")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != types.BillSplitCompleted || updated.Title != "Dinner" || len(updated.Participants) != 1 {
		t.Errorf("got %+v", updated)
	}
}

func TestInvestmentService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewInvestmentService(env.store, nil)

	if _, err := svc.Create(ctx, "u1", InvestmentInput{Symbol: ptr("aapl")}); !errors.Is(err, ErrInvestmentInvalid) {
		t.Fatalf("got %v", err)
	}

	purchased := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	aapl, err := svc.Create(ctx, "u1", InvestmentInput{
		Symbol:        ptr(" aapl "),
		Quantity:      ptr(decimal.NewFromInt(10)),
		PurchasePrice: ptr(dec("150")),
		CurrentPrice:  ptr(dec("175.50")),
		PurchaseDate:  &purchased,
	})
	if err != nil {
		t.Fatal(err)
	}
	if aapl.Symbol != "AAPL" || !aapl.PurchaseDate.Equal(purchased) {
		t.Errorf("got %+v", aapl)
	}

	vti, err := svc.Create(ctx, "u1", InvestmentInput{
		Symbol:        ptr("vti"),
		Quantity:      ptr(dec("2.5")),
		PurchasePrice: ptr(dec("200")),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !vti.CurrentPrice.Equal(vti.PurchasePrice) {
		t.Errorf("current price %s not defaulted", vti.CurrentPrice)
	}

	if _, err := svc.Update(ctx, "u2", vti.ID, InvestmentInput{CurrentPrice: ptr(dec("180"))}); !errors.Is(err, ErrInvestmentNotFound) {
		t.Errorf("got %v", err)
	}
	if _, err := svc.Update(ctx, "u1", vti.ID, InvestmentInput{Quantity: ptr(dec("0"))}); !errors.Is(err, ErrInvestmentInvalid) {
		t.Errorf("got %v", err)
	}
	if _, err := svc.Update(ctx, "u1", vti.ID, InvestmentInput{CurrentPrice: ptr(dec("180"))}); err != nil {
		t.Fatal(err)
	}

	portfolio, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	// 10*175.50 + 2.5*180 = 2205; 10*150 + 2.5*200 = 2000
	if len(portfolio.Holdings) != 2 ||
		!portfolio.TotalValue.Equal(dec("2205")) ||
		!portfolio.TotalCost.Equal(dec("2000")) ||
		!portfolio.GainLoss.Equal(dec("205")) {
		t.Errorf("got %+v", portfolio)
	}

	empty, err := svc.List(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if empty.Holdings == nil || len(empty.Holdings) != 0 || !empty.TotalValue.IsZero() {
		t.Errorf("got %+v", empty)
	}
}

type memoryObjectStore struct {
	objects map[string][]byte
	err     error
}

func (m *memoryObjectStore) PutJSON(_ context.Context, key string, v any) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	return "statements-bucket/" + key, nil
}

func (m *memoryObjectStore) GetJSON(_ context.Context, key string, v any) error {
	if m.err != nil {
		return m.err
	}
	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("get %s: %w", key, storage.ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

func TestStatementService_Archive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "owner@example.com")
	account := env.openAccount(t, user.ID, "Checking", "25")
	if _, err := env.ledger.Apply(ctx, EntryRequest{AccountID: account.ID, UserID: user.ID, Type: "deposit", Amount: dec("5")}); err != nil {
		t.Fatal(err)
	}

	objects := &memoryObjectStore{objects: make(map[string][]byte)}
	svc := NewStatementService(env.accounts, env.history, objects, nil)

	receipt, err := svc.Archive(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Entries != 2 || receipt.Location != "statements-bucket/"+receipt.Key {
		t.Errorf("got %+v", receipt)
	}
	if receipt.Key != "statements/"+user.ID+"/"+receipt.Name {
		t.Errorf("got key %q for name %q", receipt.Key, receipt.Name)
	}
	var stored Statement
	if err := json.Unmarshal(objects.objects[receipt.Key], &stored); err != nil {
		t.Fatal(err)
	}
	if stored.UserID != user.ID || len(stored.Accounts) != 1 || len(stored.History) != 2 {
		t.Errorf("got %+v", stored)
	}

	objects.err = errors.New("bucket gone")
	if _, err := svc.Archive(ctx, user.ID); err == nil {
		t.Error("expected storage error")
	}
}

func TestStatementService_Archive__disabled(t *testing.T) {
	env := newTestEnv(t)
	svc := NewStatementService(env.accounts, env.history, nil, nil)

	if _, err := svc.Archive(context.Background(), "u1"); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("got %v", err)
	}
	if _, err := svc.Fetch(context.Background(), "u1", "20260101T000000.000000000Z.json"); !errors.Is(err, ErrStorageDisabled) {
		t.Errorf("fetch: got %v", err)
	}
}

func TestStatementService_Fetch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	env.openAccount(t, alice.ID, "Checking", "150")

	objects := &memoryObjectStore{objects: make(map[string][]byte)}
	svc := NewStatementService(env.accounts, env.history, objects, nil)

	receipt, err := svc.Archive(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	stmt, err := svc.Fetch(ctx, alice.ID, receipt.Name)
	if err != nil {
		t.Fatal(err)
	}
	if stmt.UserID != alice.ID || len(stmt.Accounts) != 1 || len(stmt.History) != 1 || !stmt.GeneratedAt.Equal(receipt.GeneratedAt) {
		t.Errorf("got %+v", stmt)
	}

	// names resolve under the caller's own prefix only
	if _, err := svc.Fetch(ctx, bob.ID, receipt.Name); !errors.Is(err, ErrStatementNotFound) {
		t.Errorf("other user: got %v", err)
	}

	for _, name := range []string{
		"",
		"statement.json",
		receipt.Name[:len(receipt.Name)-len(".json")],
		"../" + alice.ID + "/" + receipt.Name,
		alice.ID + "/" + receipt.Name,
		"20260101T000000.000000000Z.json",
	} {
		if _, err := svc.Fetch(ctx, alice.ID, name); !errors.Is(err, ErrStatementNotFound) {
			t.Errorf("%q: got %v", name, err)
		}
	}

	// a document under the caller's prefix that belongs to someone else
	objects.objects["statements/"+bob.ID+"/"+receipt.Name] = objects.objects[receipt.Key]
	if _, err := svc.Fetch(ctx, bob.ID, receipt.Name); !errors.Is(err, ErrStatementNotFound) {
		t.Errorf("copied document: got %v", err)
	}

	objects.err = errors.New("bucket gone")
	if _, err := svc.Fetch(ctx, alice.ID, receipt.Name); err == nil || errors.Is(err, ErrStatementNotFound) {
		t.Errorf("storage failure: got %v", err)
	}
}
