package notification

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("notification not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns the user's notifications, newest first.
		QueryNotifications(ctx context.Context, userID string) ([]Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
	}

	Service interface {
		Notify(ctx context.Context, nn NewNotification) (Notification, error)
		QueryForUser(ctx context.Context, userID string) ([]Notification, error)
		// MarkAsRead returns ErrNotFound when the notification does not belong to userID.
		MarkAsRead(ctx context.Context, id, userID string) (Notification, error)
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) Notify(ctx context.Context, nn NewNotification) (Notification, error) {
	if err := svc.validate.Struct(nn); err != nil {
		return Notification{}, errors.Wrap(err, "validating notification")
	}
	return svc.repo.CreateNotification(ctx, Notification{
		UserID:        nn.UserID,
		Type:          nn.Type,
		Title:         nn.Title,
		Message:       nn.Message,
		RelatedUserID: nn.RelatedUserID,
		CreatedAt:     NowFunc().UTC(),
	})
}

func (svc *service) QueryForUser(ctx context.Context, userID string) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID)
}

func (svc *service) MarkAsRead(ctx context.Context, id, userID string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	if n.IsRead {
		return n, nil
	}
	n.IsRead = true
	return svc.repo.UpdateNotification(ctx, n)
}
