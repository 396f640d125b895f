package store

import (
	"context"
	"database/sql"

	"github.com/lumenbank/apiserver/types"
)

// NotificationRepository handles persistence for notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error) {
	const query = `
		INSERT INTO notifications (id, user_id, title, message, type, priority, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Type, n.Priority, n.Read, n.CreatedAt)
	if isUniqueViolation(err) {
		return types.Notification{}, ErrConflict
	}
	if err != nil {
		return types.Notification{}, err
	}
	return n, nil
}

// ListNotifications returns up to limit of the user's notifications,
// newest first. A limit of zero or less returns all of them.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]types.Notification, error) {
	query := `
		SELECT id, user_id, title, message, type, priority, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Notification
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Type,
			&n.Priority,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *NotificationRepository) SetNotificationRead(ctx context.Context, id, userID string, read bool) error {
	const query = `UPDATE notifications SET is_read = $1 WHERE id = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, read, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
