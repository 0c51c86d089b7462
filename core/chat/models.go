package chat

import (
	"time"

	"github.com/trezcool/masomo-chat/core/user"
)

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Message belongs to exactly one Room and is deleted with it.
type Message struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"` // UTC; assigned at write time
}

// RoomDetail is everything the room page needs.
type RoomDetail struct {
	Room         Room        `json:"room"`
	Messages     []Message   `json:"messages"`
	Participants []user.User `json:"participants"`
}

// RoomSummary is a Room with its participant count.
type RoomSummary struct {
	Room
	ParticipantCount int `json:"participant_count"`
}

// NewRoom contains information needed to create (or join) a Room.
type NewRoom struct {
	Name string `json:"room_name" validate:"required,notblank"`
}
