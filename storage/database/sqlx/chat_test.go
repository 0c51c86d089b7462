package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/core/user"
	"github.com/trezcool/masomo-chat/storage/database/sqlx"
	"github.com/trezcool/masomo-chat/tests"
)

type repos struct {
	usr   user.Repository
	chat  chat.Repository
	notif notification.Repository
}

func setup(t *testing.T) repos {
	db := testutil.PrepareDB(t)
	return repos{
		usr:   sqlxrepos.NewUserRepository(db),
		chat:  sqlxrepos.NewChatRepository(db),
		notif: sqlxrepos.NewNotificationRepository(db),
	}
}

func TestChatRepository_FindOrCreateRoom(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	alice := testutil.CreateUser(t, r.usr, "Alice", "alice", "alice@test.cd", "", nil, true)

	_, err := r.chat.FindRoomByName(ctx, "Math 101")
	assert.Equal(t, chat.ErrRoomNotFound, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[string]bool)
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, isNew, err := r.chat.FindOrCreateRoom(ctx, "Math 101", alice.ID)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if isNew {
				created++
			}
			ids[room.ID] = true
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	room, err := r.chat.FindRoomByName(ctx, "Math 101")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, room.CreatorID)

	// names are matched exactly
	_, err = r.chat.FindRoomByName(ctx, "math 101")
	assert.Equal(t, chat.ErrRoomNotFound, err)
}

func TestChatRepository_participantsAndMessages(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	alice := testutil.CreateUser(t, r.usr, "Alice", "alice", "alice@test.cd", "", nil, true)
	bob := testutil.CreateUser(t, r.usr, "Bob", "bob", "", "", nil, true)

	room, _, err := r.chat.FindOrCreateRoom(ctx, "Math 101", alice.ID)
	require.NoError(t, err)
	for _, id := range []string{alice.ID, bob.ID, bob.ID} {
		require.NoError(t, r.chat.AddParticipant(ctx, room.ID, id))
	}
	participants, err := r.chat.QueryParticipants(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)

	_, err = r.chat.CreateMessage(ctx, chat.Message{RoomID: room.ID, Content: "hi"})
	assert.Equal(t, chat.ErrSenderRequired, err)

	base := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, c := range []struct {
		sender user.User
		text   string
	}{{bob, "second"}, {alice, "first"}, {bob, "third"}} {
		offset := []time.Duration{time.Minute, 0, 2 * time.Minute}[i]
		_, err := r.chat.CreateMessage(ctx, chat.Message{
			RoomID:    room.ID,
			SenderID:  c.sender.ID,
			Content:   c.text,
			CreatedAt: base.Add(offset),
		})
		require.NoError(t, err)
	}

	msgs, err := r.chat.QueryMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "alice", msgs[0].SenderUsername)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
	assert.True(t, base.Equal(msgs[0].CreatedAt))

	rooms, err := r.chat.QueryRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 2, rooms[0].ParticipantCount)

	require.NoError(t, r.chat.DeleteRoom(ctx, room.ID))
	assert.Equal(t, chat.ErrRoomNotFound, r.chat.DeleteRoom(ctx, room.ID))
	msgs, err = r.chat.QueryMessages(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	participants, err = r.chat.QueryParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, participants)
}

func TestChatRepository_QueryRooms(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	alice := testutil.CreateUser(t, r.usr, "Alice", "alice", "alice@test.cd", "", nil, true)

	base := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	defer func() { chat.NowFunc = time.Now }()
	for i, name := range []string{"b", "a", "c"} {
		chat.NowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, _, err := r.chat.FindOrCreateRoom(ctx, name, alice.ID)
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		orderings []core.DBOrdering
		want      []string
	}{
		{name: "default", want: []string{"c", "a", "b"}},
		{name: "name asc", orderings: []core.DBOrdering{{Field: "name", Ascending: true}}, want: []string{"a", "b", "c"}},
		{name: "created_at asc", orderings: []core.DBOrdering{{Field: "created_at", Ascending: true}}, want: []string{"b", "a", "c"}},
		{name: "unknown field", orderings: []core.DBOrdering{{Field: "1; DROP TABLE chat_rooms"}}, want: []string{"c", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, err := r.chat.QueryRooms(ctx, tt.orderings...)
			require.NoError(t, err)
			got := make([]string, 0, len(rooms))
			for _, room := range rooms {
				got = append(got, room.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	r := setup(t)
	alice := testutil.CreateUser(t, r.usr, "Alice", "alice", "alice@test.cd", "", nil, true)

	n, err := r.notif.CreateNotification(ctx, notification.Notification{
		UserID:    alice.ID,
		Type:      notification.TypeRemoved,
		Title:     "Chat Room Deleted",
		Message:   "gone",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	got, err := r.notif.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chat Room Deleted", got.Title)
	assert.Empty(t, got.RelatedUserID)

	got.IsRead = true
	got, err = r.notif.UpdateNotification(ctx, got)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	_, err = r.notif.GetNotification(ctx, "unknown")
	assert.Equal(t, notification.ErrNotFound, err)

	notifs, err := r.notif.QueryNotifications(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
}
