package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenbank/apiserver/internal/mq"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/internal/store/jsonfile"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// memoryBroker delivers published messages to a single subscriber.
type memoryBroker struct {
	mu       sync.Mutex
	messages chan mq.Message
	acked    chan error
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{messages: make(chan mq.Message, 16), acked: make(chan error, 16)}
}

func (b *memoryBroker) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages <- mq.Message{ID: "m", Data: data, Attributes: attrs}
	return "m", nil
}

func (b *memoryBroker) Subscribe(ctx context.Context, _ string, handler mq.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.messages:
			b.acked <- handler(ctx, msg)
		}
	}
}

func (b *memoryBroker) Close() error { return nil }

func openStore(t *testing.T) *jsonfile.Store {
	t.Helper()
	s, err := jsonfile.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestNotifier__ledgerToNotification(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := newMemoryBroker()
	queue := mq.New(broker)
	notifications := services.NewNotificationService(s, nil)

	users := services.NewUserService(s, nil).WithHashCost(bcrypt.MinCost)
	user, err := users.Register(ctx, services.Registration{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "pw", ConfirmPassword: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	account, err := services.NewAccountService(s, nil).Create(ctx, user.ID, "Checking", decimal.NewFromInt(25))
	if err != nil {
		t.Fatal(err)
	}
	ledger := services.NewLedgerService(s, nil).WithEvents(queue, "ledger")

	done := make(chan error, 1)
	go func() {
		done <- NewNotifier(queue, "ledger", notifications, nil).Run(ctx)
	}()

	if _, err := ledger.Apply(ctx, services.EntryRequest{AccountID: account.ID, UserID: user.ID, Type: "deposit", Amount: decimal.NewFromInt(5)}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-broker.acked:
		if err != nil {
			t.Fatalf("handler failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was not consumed")
	}

	items, err := notifications.List(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Deposit received" || items[0].Type != types.NotificationSuccess {
		t.Errorf("got %+v", items)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run returned %v after cancel", err)
	}
}

func TestNotifier_Handle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	notifications := services.NewNotificationService(s, nil)
	n := NewNotifier(nil, "ledger", notifications, nil)

	// other event kinds are skipped
	if err := n.Handle(ctx, mq.Message{Data: []byte("{}"), Attributes: map[string]string{"event": "account.opened"}}); err != nil {
		t.Errorf("got %v", err)
	}
	// garbage is dropped, not retried
	if err := n.Handle(ctx, mq.Message{Data: []byte("not json")}); err != nil {
		t.Errorf("got %v", err)
	}
	// an event without a user cannot be delivered and is retried
	if err := n.Handle(ctx, mq.Message{Data: []byte(`{"type":"deposit","amount":"5","balance":"30"}`)}); err == nil {
		t.Error("expected an error")
	}

	items, err := notifications.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("got %d notifications", len(items))
	}
}

type failingSubscriber struct{ err error }

func (f failingSubscriber) Subscribe(context.Context, string, mq.Handler) error { return f.err }

func TestNotifier_Run__errors(t *testing.T) {
	n := NewNotifier(failingSubscriber{err: context.Canceled}, "ledger", nil, nil)
	if err := n.Run(context.Background()); err != nil {
		t.Errorf("got %v", err)
	}

	broken := errors.New("connection reset")
	n = NewNotifier(failingSubscriber{err: broken}, "ledger", nil, nil)
	if err := n.Run(context.Background()); !errors.Is(err, broken) {
		t.Errorf("got %v", err)
	}
}

func TestNotifier_Handle__redelivery(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	notifications := services.NewNotificationService(s, nil)
	n := NewNotifier(nil, "ledger", notifications, nil)

	msg := mq.Message{
		ID:         "m1",
		Data:       []byte(`{"transactionId":"t1","userId":"u1","type":"deposit","amount":"5","balance":"30"}`),
		Attributes: map[string]string{"event": services.EventTransactionApplied},
	}
	for i := 0; i < 3; i++ {
		if err := n.Handle(ctx, msg); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	items, err := notifications.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("got %d notifications after redelivery, want 1", len(items))
	}
}
