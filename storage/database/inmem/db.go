package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/core/user"
)

type (
	DB struct {
		user         *userTable
		chat         *chatTables
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	// chatTables are guarded together; lock them before the user table.
	chatTables struct {
		sync.RWMutex
		rooms        map[string]*chat.Room
		participants map[string][]string       // room ID -> user IDs, by join order
		messages     map[string][]chat.Message // room ID -> messages, by insertion order
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		chat: &chatTables{
			rooms:        make(map[string]*chat.Room),
			participants: make(map[string][]string),
			messages:     make(map[string][]chat.Message),
		},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
}
