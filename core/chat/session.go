package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-chat/core/user"
)

// Session is one live client connection bound to one room.
// It is a Subscriber of its room's group for as long as it is joined.
type Session struct {
	id   string
	Room RoomIdentity
	User *user.User // nil for anonymous connections

	mu     sync.Mutex
	closed bool
	outbox chan OutboundFrame
}

var _ Subscriber = (*Session)(nil)

func NewSession(room RoomIdentity, usr *user.User, buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		id:     uuid.NewString(),
		Room:   room,
		User:   usr,
		outbox: make(chan OutboundFrame, buffer),
	}
}

func (s *Session) ID() string { return s.id }

// Authenticated reports whether the session is bound to an active user.
func (s *Session) Authenticated() bool {
	return s.User != nil && s.User.IsActive && s.User.ID != ""
}

// Deliver enqueues frame for the writer without blocking.
func (s *Session) Deliver(frame OutboundFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.outbox <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Outbox is closed once the session is closed.
func (s *Session) Outbox() <-chan OutboundFrame { return s.outbox }

// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.outbox)
	}
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
