// Package worker consumes ledger events off the message queue.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/mq"
	"github.com/lumenbank/apiserver/internal/services"
)

// Subscriber is the consuming half of the message queue.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Notifier turns committed ledger entries into user notifications.
type Notifier struct {
	sub           Subscriber
	channel       string
	notifications *services.NotificationService
	logger        log.Logger
}

func NewNotifier(sub Subscriber, channel string, notifications *services.NotificationService, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Notifier{sub: sub, channel: channel, notifications: notifications, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Log("msg", "notifier listening", "channel", n.channel)
	err := n.sub.Subscribe(ctx, n.channel, n.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one message. Events of other kinds and redeliveries are
// acknowledged and skipped; undecodable payloads are dropped since a retry
// cannot fix them.
func (n *Notifier) Handle(ctx context.Context, msg mq.Message) error {
	if event := msg.Event(); event != "" && event != services.EventTransactionApplied {
		return nil
	}

	event, err := services.DecodeLedgerEvent(msg.Data)
	if err != nil {
		n.logger.Log("msg", "dropping undecodable ledger event", "id", msg.ID, "err", err)
		return nil
	}

	notification, err := n.notifications.NotifyTransaction(ctx, event)
	if errors.Is(err, services.ErrNotificationExists) {
		n.logger.Log("msg", "duplicate ledger event", "id", msg.ID, "transaction", event.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify transaction %s: %w", event.TransactionID, err)
	}
	n.logger.Log("msg", "notification created", "user", event.UserID, "notification", notification.ID, "transaction", event.TransactionID)
	return nil
}
