package repository

import (
	"context"
	"fmt"

	"github.com/collabhub/realtime/domain"
	"github.com/gocql/gocql"
)

// notification is the persisted-notification store: the badge-count copy
// of every event per recipient, kept whether or not the event reached a
// live connection.
type notification struct {
	db *gocql.Session
}

func NewNotification(session *gocql.Session) *notification {
	return &notification{db: session}
}

func (r *notification) Insert(ctx context.Context, userID uint64, event *domain.NotificationEvent) error {
	return r.db.Query(
		`INSERT INTO notifications
			(user_id, id, event_type, origin_user_id, work_item_id, payload, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, false)`,
		userID,
		event.ID,
		event.Type,
		event.OriginUserID,
		event.WorkItemID,
		[]byte(event.Payload),
		event.CreatedAt,
	).WithContext(ctx).Exec()
}

func (r *notification) List(
	ctx context.Context,
	userID uint64,
	beforeID *uint64,
	limit int,
) ([]domain.NotificationEvent, error) {
	query := `SELECT
			id, event_type, origin_user_id, work_item_id, payload, created_at
		FROM
			notifications
		WHERE
			user_id = ?`
	args := []any{userID}

	if beforeID != nil {
		query += " AND id < ?"
		args = append(args, *beforeID)
	}

	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	scanner := r.db.Query(query, args...).WithContext(ctx).Iter().Scanner()

	var (
		events []domain.NotificationEvent
		err    error
	)

	for scanner.Next() {
		var (
			event   domain.NotificationEvent
			payload []byte
		)

		err = scanner.Scan(
			&event.ID,
			&event.Type,
			&event.OriginUserID,
			&event.WorkItemID,
			&payload,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		event.Payload = payload
		events = append(events, event)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("close scanner: %w", err)
	}

	return events, nil
}

func (r *notification) UnreadCount(ctx context.Context, userID uint64) (int, error) {
	var count int

	err := r.db.Query(
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = false ALLOW FILTERING",
		userID,
	).WithContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}

	return count, nil
}

func (r *notification) MarkRead(ctx context.Context, userID uint64, eventID uint64) error {
	return r.db.Query(
		"UPDATE notifications SET is_read = true WHERE user_id = ? AND id = ?",
		userID,
		eventID,
	).WithContext(ctx).Exec()
}
