package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
)

const notificationListLimit = 20

// transactionNotificationSpace derives a transaction's notification id, so a
// redelivered ledger event maps onto the notification already recorded.
var transactionNotificationSpace = uuid.MustParse("6f1c5a0e-3d2b-4f7a-9c84-2b1e7d9a4c55")

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]types.Notification, error)
	SetNotificationRead(ctx context.Context, id, userID string, read bool) error
}

// NotificationService manages the notification center.
type NotificationService struct {
	repo   NotificationRepository
	logger log.Logger
}

func NewNotificationService(repo NotificationRepository, logger log.Logger) *NotificationService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// NewNotification is the input to Create. Type defaults to info and
// Priority to medium.
type NewNotification struct {
	Title    string
	Message  string
	Type     string
	Priority string
}

func (s *NotificationService) Create(ctx context.Context, userID string, in NewNotification) (types.Notification, error) {
	return s.create(ctx, uuid.NewString(), userID, in)
}

func (s *NotificationService) create(ctx context.Context, id, userID string, in NewNotification) (types.Notification, error) {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if title == "" || message == "" {
		return types.Notification{}, ErrNotificationInvalid
	}

	kind := strings.ToLower(strings.TrimSpace(in.Type))
	switch kind {
	case "":
		kind = types.NotificationInfo
	case types.NotificationInfo, types.NotificationSuccess, types.NotificationWarning, types.NotificationError:
	default:
		return types.Notification{}, invalid(ErrNotificationType, kind)
	}

	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	switch priority {
	case "":
		priority = types.PriorityMedium
	case types.PriorityLow, types.PriorityMedium, types.PriorityHigh:
	default:
		return types.Notification{}, invalid(ErrNotificationType, priority)
	}

	return s.repo.CreateNotification(ctx, types.Notification{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      kind,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	})
}

// List returns the user's latest notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]types.Notification, error) {
	items, err := s.repo.ListNotifications(ctx, userID, notificationListLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []types.Notification{}
	}
	return items, nil
}

func (s *NotificationService) SetRead(ctx context.Context, userID, id string, read bool) error {
	err := s.repo.SetNotificationRead(ctx, id, userID, read)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// NotifyTransaction records a notification for a committed ledger entry.
// Each transaction gets at most one; a repeat returns
// ErrNotificationExists.
func (s *NotificationService) NotifyTransaction(ctx context.Context, event LedgerEvent) (types.Notification, error) {
	if event.UserID == "" {
		return types.Notification{}, errors.New("ledger event has no user")
	}
	if event.TransactionID == "" {
		return types.Notification{}, errors.New("ledger event has no transaction")
	}

	account := event.AccountNumber
	if len(account) > 4 {
		account = "****" + account[len(account)-4:]
	}

	var in NewNotification
	switch event.Type {
	case types.TransactionDeposit:
		in = NewNotification{
			Title:   "Deposit received",
			Message: fmt.Sprintf("$%s was deposited to account %s. New balance: $%s.", event.Amount.StringFixed(2), account, event.Balance.StringFixed(2)),
			Type:    types.NotificationSuccess,
		}
	case types.TransactionWithdrawal:
		in = NewNotification{
			Title:   "Withdrawal processed",
			Message: fmt.Sprintf("$%s was withdrawn from account %s. New balance: $%s.", event.Amount.StringFixed(2), account, event.Balance.StringFixed(2)),
			Type:    types.NotificationInfo,
		}
	default:
		return types.Notification{}, fmt.Errorf("unknown transaction type %q", event.Type)
	}
	id := uuid.NewSHA1(transactionNotificationSpace, []byte(event.TransactionID)).String()
	n, err := s.create(ctx, id, event.UserID, in)
	if errors.Is(err, store.ErrConflict) {
		return types.Notification{}, ErrNotificationExists
	}
	return n, err
}
