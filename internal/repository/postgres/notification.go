package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

// Create stores the notification as given; CreatedAt is the caller's to set.
func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	attrs, err := json.Marshal(n.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes of %s notification: %w", n.SubType, err)
	}

	logger.DatabaseCall("INSERT", "notifications", "userID", n.UserID, "subType", n.SubType)
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, sub_type, title, message, is_read, attributes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		n.UserID, n.SubType, n.Title, n.Message, n.IsRead, attrs, n.CreatedAt,
	).Scan(&n.ID)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)
	return err
}

// List pages a user's inbox newest first. The total comes from a window count
// so one round trip serves both.
func (r *notificationRepository) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	logger.DatabaseCall("SELECT", "notifications", "userID", userID, "limit", limit, "offset", offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, sub_type, title, message, is_read, attributes, created_at, count(*) OVER () AS total
		 FROM notifications WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		notes []domain.Notification
		total int32
	)
	for rows.Next() {
		var (
			n     domain.Notification
			attrs []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.SubType, &n.Title, &n.Message, &n.IsRead, &attrs, &n.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &n.Attributes); err != nil {
				return nil, 0, fmt.Errorf("decode attributes of notification %d: %w", n.ID, err)
			}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(notes) == 0 && offset > 0 {
		// Past the last page the window count is unavailable.
		err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total)
		if err != nil {
			return nil, 0, err
		}
	}
	logger.DatabaseResult("SELECT", int64(len(notes)), nil, "total", total)
	return notes, total, nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID int32) error {
	logger.DatabaseCall("UPDATE", "notifications", "notificationID", id, "userID", userID)
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err)
	switch {
	case err != nil:
		return err
	case n == 0:
		return fmt.Errorf("notification %d of user %d: %w", id, userID, repository.ErrNotFound)
	}
	return nil
}
