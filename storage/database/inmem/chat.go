package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/user"
)

type chatRepository struct {
	db    *chatTables
	users *userTable
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db.chat, users: db.user}
}

func (repo *chatRepository) findByName(name string) (chat.Room, bool) {
	for _, room := range repo.db.rooms {
		if room.Name == name {
			return *room, true
		}
	}
	return chat.Room{}, false
}

func (repo *chatRepository) FindRoomByName(_ context.Context, name string) (chat.Room, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if room, ok := repo.findByName(name); ok {
		return room, nil
	}
	return chat.Room{}, chat.ErrRoomNotFound
}

func (repo *chatRepository) FindOrCreateRoom(_ context.Context, name, creatorID string) (chat.Room, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if room, ok := repo.findByName(name); ok {
		return room, false, nil
	}
	room := chat.Room{
		ID:        uuid.NewString(),
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: chat.NowFunc().UTC(),
	}
	repo.db.rooms[room.ID] = &room
	return room, true, nil
}

func (repo *chatRepository) QueryRooms(_ context.Context, orderings ...core.DBOrdering) ([]chat.RoomSummary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rooms := make([]chat.RoomSummary, 0, len(repo.db.rooms))
	for _, room := range repo.db.rooms {
		rooms = append(rooms, chat.RoomSummary{Room: *room, ParticipantCount: len(repo.db.participants[room.ID])})
	}

	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(rooms[i].Name, rooms[j].Name)
			case "created_at":
				cmp = rooms[i].CreatedAt.Compare(rooms[j].CreatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return false
	})
	return rooms, nil
}

func (repo *chatRepository) AddParticipant(_ context.Context, roomID, userID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rooms[roomID]; !ok {
		return chat.ErrRoomNotFound
	}
	for _, id := range repo.db.participants[roomID] {
		if id == userID {
			return nil
		}
	}
	repo.db.participants[roomID] = append(repo.db.participants[roomID], userID)
	return nil
}

func (repo *chatRepository) QueryParticipants(_ context.Context, roomID string) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	repo.users.RLock()
	defer repo.users.RUnlock()

	ids := repo.db.participants[roomID]
	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := repo.users.table[id]; ok {
			users = append(users, *usr)
		}
	}
	return users, nil
}

func (repo *chatRepository) DeleteRoom(_ context.Context, roomID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rooms[roomID]; !ok {
		return chat.ErrRoomNotFound
	}
	delete(repo.db.rooms, roomID)
	delete(repo.db.participants, roomID)
	delete(repo.db.messages, roomID)
	return nil
}

func (repo *chatRepository) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if msg.SenderID == "" {
		return chat.Message{}, chat.ErrSenderRequired
	}
	if _, ok := repo.db.rooms[msg.RoomID]; !ok {
		return chat.Message{}, chat.ErrRoomNotFound
	}
	msg.ID = uuid.NewString()
	repo.db.messages[msg.RoomID] = append(repo.db.messages[msg.RoomID], msg)
	return msg, nil
}

func (repo *chatRepository) QueryMessages(_ context.Context, roomID string) ([]chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]chat.Message, len(repo.db.messages[roomID]))
	copy(msgs, repo.db.messages[roomID])
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}
