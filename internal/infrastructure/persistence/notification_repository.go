package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

// NotificationRepository handles database operations for notifications.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert persists a notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.SystemNotification) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, recipient_id, title, body, link, is_read, created_date)
		VALUES (?, ?, ?, ?, ?, ?, NOW())`,
		constants.TableNotification)

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.Title,
		n.Body,
		n.Link,
		n.IsRead,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by id, nil if absent.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.SystemNotification, error) {
	query := fmt.Sprintf(`
		SELECT id, recipient_id, title, body, link, is_read, created_date
		FROM %s WHERE %s = ? LIMIT 1`,
		constants.TableNotification, constants.FieldID)

	var n models.SystemNotification
	var createdRaw []byte
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.Link, &n.IsRead, &createdRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification %s: %w", id, err)
	}
	n.CreatedDate = parseTime(createdRaw)
	return &n, nil
}

// ListForRecipient returns a user's notifications, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]*models.SystemNotification, error) {
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}

	query := fmt.Sprintf(`
		SELECT id, recipient_id, title, body, link, is_read, created_date
		FROM %s
		WHERE recipient_id = ?
		ORDER BY created_date DESC
		LIMIT ?`,
		constants.TableNotification)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for %s: %w", recipientID, err)
	}
	defer rows.Close()

	var notifications []*models.SystemNotification
	for rows.Next() {
		var n models.SystemNotification
		var createdRaw []byte
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.Link, &n.IsRead, &createdRaw); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.CreatedDate = parseTime(createdRaw)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead flags a notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET is_read = 1 WHERE id = ?", constants.TableNotification)
	result, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("notification %s not found", id)
	}
	return nil
}
