package chat

import "github.com/pkg/errors"

var (
	// ErrMalformedFrame is returned for inbound payloads that are not `{"message": "<text>"}`.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnauthenticatedSender is returned when an anonymous session tries to send.
	ErrUnauthenticatedSender = errors.New("sender not authenticated")
	ErrRoomNotFound          = errors.New("chat room not found")
	// ErrSenderRequired is returned when persisting a message without a sender.
	ErrSenderRequired = errors.New("message sender required")
	ErrNotRoomCreator = errors.New("chat room not found or you do not have permission to delete it")
	ErrSessionClosed  = errors.New("session closed")
	// ErrSlowConsumer is returned when a session's outbox is full; the frame is dropped for that session.
	ErrSlowConsumer = errors.New("session outbox full")
)

// IsDropped reports whether err only means the inbound frame was ignored.
func IsDropped(err error) bool {
	switch errors.Cause(err) {
	case ErrMalformedFrame, ErrUnauthenticatedSender:
		return true
	}
	return false
}
