package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/storage/database/inmem"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := notification.NewService(inmemdb.NewNotificationRepository(inmemdb.Open()), validator.New())

	base := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	defer func() { notification.NowFunc = time.Now }()

	_, err := svc.Notify(ctx, notification.NewNotification{UserID: "u1", Type: "spam", Title: "t", Message: "m"})
	assert.IsType(t, validator.ValidationErrors{}, errors.Cause(err))

	var created []notification.Notification
	for i, title := range []string{"older", "newer"} {
		notification.NowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		n, err := svc.Notify(ctx, notification.NewNotification{
			UserID:  "u1",
			Type:    notification.TypeRemoved,
			Title:   title,
			Message: "m",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, n.ID)
		assert.False(t, n.IsRead)
		created = append(created, n)
	}

	notifs, err := svc.QueryForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, notifs, 2)
	assert.Equal(t, "newer", notifs[0].Title, "newest first")

	notifs, err = svc.QueryForUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, notifs)

	_, err = svc.MarkAsRead(ctx, created[0].ID, "u2")
	assert.Equal(t, notification.ErrNotFound, err, "other users' notifications are hidden")
	_, err = svc.MarkAsRead(ctx, "unknown", "u1")
	assert.Equal(t, notification.ErrNotFound, err)

	n, err := svc.MarkAsRead(ctx, created[0].ID, "u1")
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	n, err = svc.MarkAsRead(ctx, created[0].ID, "u1")
	require.NoError(t, err)
	assert.True(t, n.IsRead)
}
