package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/core/user"
	"github.com/trezcool/masomo-chat/storage/database/inmem"
	"github.com/trezcool/masomo-chat/tests"
)

type fixture struct {
	svc      chat.Service
	hub      *chat.Hub
	repo     chat.Repository
	usrRepo  user.Repository
	notifSvc notification.Service
	alice    user.User
	bob      user.User
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	f := fixture{
		hub:      chat.NewHub(testutil.NewLogger()),
		repo:     inmemdb.NewChatRepository(db),
		usrRepo:  inmemdb.NewUserRepository(db),
		notifSvc: notification.NewService(inmemdb.NewNotificationRepository(db), validate),
	}
	f.svc = chat.NewService(f.repo, user.NewService(f.usrRepo), f.hub, f.notifSvc, validate, core.ChatConfig{SendBuffer: 8})
	f.alice = testutil.CreateUser(t, f.usrRepo, "Alice Doe", "alice", "alice@test.cd", "", []string{user.RoleStudent}, true)
	f.bob = testutil.CreateUser(t, f.usrRepo, "", "bob", "bob@test.cd", "", []string{user.RoleTeacher}, true)
	return f
}

func recv(t *testing.T, sess *chat.Session) chat.OutboundFrame {
	t.Helper()
	select {
	case frame := <-sess.Outbox():
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return chat.OutboundFrame{}
	}
}

func assertNothingReceived(t *testing.T, sess *chat.Session) {
	t.Helper()
	select {
	case frame := <-sess.Outbox():
		t.Fatalf("unexpected frame %+v", frame)
	default:
	}
}

func TestService_Connect(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	sess, err := f.svc.Connect(ctx, "Math%20101", &f.alice)
	require.NoError(t, err)
	assert.Equal(t, "Math 101", sess.Room.DisplayName)
	assert.Equal(t, "chat_math-101", sess.Room.GroupKey)
	assert.Equal(t, 1, f.hub.Members("chat_math-101"))

	// joining never creates the room
	_, err = f.repo.FindRoomByName(ctx, "Math 101")
	assert.Equal(t, chat.ErrRoomNotFound, err)

	anon, err := f.svc.Connect(ctx, "Math 101", nil)
	require.NoError(t, err)
	assert.False(t, anon.Authenticated())
	assert.Equal(t, 2, f.hub.Members("chat_math-101"))
}

func TestService_Receive(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.OpenRoom(ctx, "Math 101", f.alice)
	require.NoError(t, err)

	aliceSess, err := f.svc.Connect(ctx, "Math%20101", &f.alice)
	require.NoError(t, err)
	bobSess, err := f.svc.Connect(ctx, "Math 101", &f.bob)
	require.NoError(t, err)
	anonSess, err := f.svc.Connect(ctx, "Math 101", nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Receive(ctx, aliceSess, []byte(`{"message": "hi"}`)))
	want := chat.OutboundFrame{Message: "hi", Username: "alice"}
	assert.Equal(t, want, recv(t, aliceSess), "sender receives its own message")
	assert.Equal(t, want, recv(t, bobSess))
	assert.Equal(t, want, recv(t, anonSess))

	room, err := f.repo.FindRoomByName(ctx, "Math 101")
	require.NoError(t, err)
	msgs, err := f.repo.QueryMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, f.alice.ID, msgs[0].SenderID)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.False(t, msgs[0].CreatedAt.IsZero())
}

func TestService_Receive_dropped(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	detail, err := f.svc.OpenRoom(ctx, "Math 101", f.alice)
	require.NoError(t, err)
	listener, err := f.svc.Connect(ctx, "Math 101", &f.alice)
	require.NoError(t, err)
	anon, err := f.svc.Connect(ctx, "Math 101", nil)
	require.NoError(t, err)
	bob, err := f.svc.Connect(ctx, "Math 101", &f.bob)
	require.NoError(t, err)
	ghost, err := f.svc.Connect(ctx, "No Such Room", &f.bob)
	require.NoError(t, err)

	tests := []struct {
		name    string
		sess    *chat.Session
		data    string
		wantErr error
	}{
		{name: "anonymous", sess: anon, data: `{"message": "hi"}`, wantErr: chat.ErrUnauthenticatedSender},
		{name: "malformed", sess: bob, data: `{"msg": "hi"}`, wantErr: chat.ErrMalformedFrame},
		{name: "not json", sess: bob, data: `hi`, wantErr: chat.ErrMalformedFrame},
		{name: "room not found", sess: ghost, data: `{"message": "hi"}`, wantErr: chat.ErrRoomNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Receive(ctx, tt.sess, []byte(tt.data))
			assert.Equal(t, tt.wantErr, errors.Cause(err))
			assertNothingReceived(t, listener)
			assertNothingReceived(t, tt.sess)
		})
	}

	msgs, err := f.repo.QueryMessages(ctx, detail.Room.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.True(t, chat.IsDropped(chat.ErrMalformedFrame))
	assert.False(t, chat.IsDropped(chat.ErrRoomNotFound))
}

func TestService_Receive_deactivatedSender(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	detail, err := f.svc.OpenRoom(ctx, "Math 101", f.alice)
	require.NoError(t, err)
	listener, err := f.svc.Connect(ctx, "Math 101", &f.alice)
	require.NoError(t, err)
	bobSess, err := f.svc.Connect(ctx, "Math 101", &f.bob)
	require.NoError(t, err)
	unknown := user.User{ID: "gone", Username: "gone", IsActive: true}
	unknownSess, err := f.svc.Connect(ctx, "Math 101", &unknown)
	require.NoError(t, err)

	// bob was active when connecting
	bob := f.bob
	bob.IsActive = false
	_, err = f.usrRepo.UpdateUser(ctx, bob)
	require.NoError(t, err)

	for _, sess := range []*chat.Session{bobSess, unknownSess} {
		err = f.svc.Receive(ctx, sess, []byte(`{"message": "still allowed?"}`))
		assert.Equal(t, chat.ErrUnauthenticatedSender, errors.Cause(err))
		assert.True(t, chat.IsDropped(err))
	}
	assertNothingReceived(t, listener)

	msgs, err := f.repo.QueryMessages(ctx, detail.Room.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestService_Disconnect(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.OpenRoom(ctx, "Math 101", f.alice)
	require.NoError(t, err)
	aliceSess, err := f.svc.Connect(ctx, "Math 101", &f.alice)
	require.NoError(t, err)
	bobSess, err := f.svc.Connect(ctx, "Math 101", &f.bob)
	require.NoError(t, err)
	require.Equal(t, 2, f.hub.Members("chat_math-101"))

	require.NoError(t, f.svc.Disconnect(ctx, bobSess))
	require.NoError(t, f.svc.Disconnect(ctx, bobSess)) // idempotent
	assert.Equal(t, 1, f.hub.Members("chat_math-101"))
	assert.True(t, bobSess.Closed())

	require.NoError(t, f.svc.Receive(ctx, aliceSess, []byte(`{"message": "still here?"}`)))
	assert.Equal(t, "still here?", recv(t, aliceSess).Message)
	_, open := <-bobSess.Outbox()
	assert.False(t, open, "no delivery after disconnect")
}

func TestService_AppendMessage(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	room, _, err := f.svc.CreateRoom(ctx, chat.NewRoom{Name: "Physics"}, f.alice)
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(ctx, room, nil, "hi")
	assert.Equal(t, chat.ErrSenderRequired, err)
	_, err = f.svc.AppendMessage(ctx, room, &user.User{Username: "unsaved"}, "hi")
	assert.Equal(t, chat.ErrSenderRequired, err)

	msg, err := f.svc.AppendMessage(ctx, room, &f.bob, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, room.ID, msg.RoomID)
	assert.Equal(t, "bob", msg.SenderUsername)
}

func TestService_OpenRoom(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	base := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	chat.NowFunc = func() time.Time { return base }
	defer func() { chat.NowFunc = time.Now }()

	detail, err := f.svc.OpenRoom(ctx, "Math%20101", f.alice)
	require.NoError(t, err)
	assert.Equal(t, "Math 101", detail.Room.Name)
	assert.Equal(t, f.alice.ID, detail.Room.CreatorID)
	assert.Empty(t, detail.Messages)
	require.Len(t, detail.Participants, 1)

	for i, text := range []string{"first", "second", "third"} {
		chat.NowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := f.svc.AppendMessage(ctx, detail.Room, &f.alice, text)
		require.NoError(t, err)
	}

	again, err := f.svc.OpenRoom(ctx, "Math 101", f.bob)
	require.NoError(t, err)
	assert.Equal(t, detail.Room.ID, again.Room.ID, "same room for the same display name")
	assert.Equal(t, f.alice.ID, again.Room.CreatorID)
	require.Len(t, again.Messages, 3)
	assert.Equal(t, "first", again.Messages[0].Content)
	assert.Equal(t, "third", again.Messages[2].Content)
	assert.Len(t, again.Participants, 2)

	// participation is idempotent
	again, err = f.svc.OpenRoom(ctx, "Math 101", f.bob)
	require.NoError(t, err)
	assert.Len(t, again.Participants, 2)
}

func TestService_CreateRoom(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for name, tag := range map[string]string{"": "required", " \t ": "notblank"} {
		_, _, err := f.svc.CreateRoom(ctx, chat.NewRoom{Name: name}, f.alice)
		var vErrs validator.ValidationErrors
		require.True(t, errors.As(err, &vErrs), "%q: %v", name, err)
		require.Len(t, vErrs, 1)
		assert.Equal(t, tag, vErrs[0].Tag(), "%q", name)
	}

	room, created, err := f.svc.CreateRoom(ctx, chat.NewRoom{Name: " Biology "}, f.alice)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Biology", room.Name)

	same, created, err := f.svc.CreateRoom(ctx, chat.NewRoom{Name: "Biology"}, f.bob)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room.ID, same.ID)

	participants, err := f.repo.QueryParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}

func TestService_ListRooms(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	base := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	defer func() { chat.NowFunc = time.Now }()
	for i, name := range []string{"b", "a", "c"} {
		chat.NowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, _, err := f.svc.CreateRoom(ctx, chat.NewRoom{Name: name}, f.alice)
		require.NoError(t, err)
	}

	names := func(rooms []chat.RoomSummary) []string {
		ns := make([]string, 0, len(rooms))
		for _, r := range rooms {
			ns = append(ns, r.Name)
		}
		return ns
	}

	rooms, err := f.svc.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, names(rooms), "newest first by default")
	assert.Equal(t, 1, rooms[0].ParticipantCount)

	rooms, err = f.svc.ListRooms(ctx, core.DBOrdering{Field: "name", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(rooms))

	rooms, err = f.svc.ListRooms(ctx, core.DBOrdering{Field: "password_hash", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, names(rooms), "unknown fields are ignored")
}

func TestService_DeleteRoom(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	carol := testutil.CreateUser(t, f.usrRepo, "Carol", "carol", "carol@test.cd", "", nil, true)

	detail, err := f.svc.OpenRoom(ctx, "Math 101", f.alice)
	require.NoError(t, err)
	_, err = f.svc.OpenRoom(ctx, "Math 101", f.bob)
	require.NoError(t, err)
	_, err = f.svc.AppendMessage(ctx, detail.Room, &f.bob, "hi")
	require.NoError(t, err)

	assert.Equal(t, chat.ErrNotRoomCreator, f.svc.DeleteRoom(ctx, "Math 101", f.bob))
	assert.Equal(t, chat.ErrNotRoomCreator, f.svc.DeleteRoom(ctx, "Nope", f.alice))

	require.NoError(t, f.svc.DeleteRoom(ctx, "Math%20101", f.alice))
	_, err = f.repo.FindRoomByName(ctx, "Math 101")
	assert.Equal(t, chat.ErrRoomNotFound, err)
	msgs, err := f.repo.QueryMessages(ctx, detail.Room.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	notifs, err := f.notifSvc.QueryForUser(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.TypeRemoved, notifs[0].Type)
	assert.Equal(t, "Chat Room Deleted", notifs[0].Title)
	assert.Equal(t, `The chat room "Math 101" has been deleted by Alice Doe.`, notifs[0].Message)
	assert.Equal(t, f.alice.ID, notifs[0].RelatedUserID)

	for _, usr := range []user.User{f.alice, carol} {
		notifs, err = f.notifSvc.QueryForUser(ctx, usr.ID)
		require.NoError(t, err)
		assert.Empty(t, notifs)
	}
}
