package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/tests"
)

func Test_notificationApi(t *testing.T) {
	app := setup(t)

	alice := testutil.CreateUser(t, app.usrRepo, "Alice Doe", "alice", "alice@test.cd", "", nil, true)
	bob := testutil.CreateUser(t, app.usrRepo, "", "bob", "bob@test.cd", "", nil, true)
	aliceToken, bobToken := app.token(t, alice), app.token(t, bob)

	rec := app.do(http.MethodGet, "/v1/notifications", bobToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)

	n, err := app.srv.deps.NotifSvc.Notify(context.Background(), notification.NewNotification{
		UserID:        bob.ID,
		Type:          notification.TypeRemoved,
		Title:         "Chat Room Deleted",
		Message:       `The chat room "Math 101" has been deleted by Alice Doe.`,
		RelatedUserID: alice.ID,
	})
	require.NoError(t, err)

	rec = app.do(http.MethodGet, "/v1/notifications", bobToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var notifs []notification.Notification
	unmarshal(t, rec, &notifs)
	require.Len(t, notifs, 1)
	assert.Equal(t, n.ID, notifs[0].ID)
	assert.False(t, notifs[0].IsRead)

	notFound := marshalObj(t, httpErr{Error: notification.ErrNotFound.Error()})
	tests := []httpTest{
		{name: "no token", path: "/v1/notifications/" + n.ID + "/read", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "someone else's", path: "/v1/notifications/" + n.ID + "/read", token: aliceToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown", path: "/v1/notifications/lol/read", token: bobToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "ok", path: "/v1/notifications/" + n.ID + "/read", token: bobToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(http.MethodPost, tt.path, tt.token))
		})
	}

	got, err := app.notifRepo.GetNotification(context.Background(), n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}
