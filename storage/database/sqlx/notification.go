package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-chat/core/notification"
)

const notificationColumns = "id, user_id, notification_type, title, message, is_read, related_user_id, created_at"

type notificationRow struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	Type          string      `db:"notification_type"`
	Title         string      `db:"title"`
	Message       string      `db:"message"`
	IsRead        bool        `db:"is_read"`
	RelatedUserID null.String `db:"related_user_id"`
	CreatedAt     time.Time   `db:"created_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:            r.ID,
		UserID:        r.UserID,
		Type:          r.Type,
		Title:         r.Title,
		Message:       r.Message,
		IsRead:        r.IsRead,
		RelatedUserID: r.RelatedUserID.String,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = uuid.NewString()
	row := notificationRow{
		ID:            n.ID,
		UserID:        n.UserID,
		Type:          n.Type,
		Title:         n.Title,
		Message:       n.Message,
		IsRead:        n.IsRead,
		RelatedUserID: null.NewString(n.RelatedUserID, n.RelatedUserID != ""),
		CreatedAt:     n.CreatedAt.UTC(),
	}
	q := "INSERT INTO notifications (" + notificationColumns + ") VALUES " +
		"(:id, :user_id, :notification_type, :title, :message, :is_read, :related_user_id, :created_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	q := repo.db.Rebind("SELECT " + notificationColumns + " FROM notifications WHERE user_id = ? ORDER BY created_at DESC")
	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.toNotification())
	}
	return notifs, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var r notificationRow
	q := repo.db.Rebind("SELECT " + notificationColumns + " FROM notifications WHERE id = ?")
	if err := repo.db.GetContext(ctx, &r, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "selecting notification")
	}
	return r.toNotification(), nil
}

func (repo *notificationRepository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("UPDATE notifications SET is_read = ? WHERE id = ?"), n.IsRead, n.ID)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if count, err := res.RowsAffected(); err == nil && count == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return repo.GetNotification(ctx, n.ID)
}
