package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-chat/core/user"
)

func TestSession_Deliver(t *testing.T) {
	sess := NewSession(ResolveRoom("x"), nil, 2)
	frame := OutboundFrame{Message: "hi", Username: "alice"}

	assert.NoError(t, sess.Deliver(frame))
	assert.NoError(t, sess.Deliver(frame))
	assert.Equal(t, ErrSlowConsumer, sess.Deliver(frame), "outbox full")

	assert.Equal(t, frame, <-sess.Outbox())
	assert.NoError(t, sess.Deliver(frame))
}

func TestSession_Close(t *testing.T) {
	sess := NewSession(ResolveRoom("x"), nil, 2)
	assert.NoError(t, sess.Deliver(OutboundFrame{Message: "queued"}))

	sess.Close()
	sess.Close() // idempotent
	assert.True(t, sess.Closed())
	assert.Equal(t, ErrSessionClosed, sess.Deliver(OutboundFrame{Message: "late"}))

	// queued frames are still drained
	frame, ok := <-sess.Outbox()
	assert.True(t, ok)
	assert.Equal(t, "queued", frame.Message)
	_, ok = <-sess.Outbox()
	assert.False(t, ok)
}

func TestSession_Authenticated(t *testing.T) {
	tests := []struct {
		name string
		usr  *user.User
		want bool
	}{
		{name: "anonymous", usr: nil, want: false},
		{name: "inactive", usr: &user.User{ID: "1", Username: "bob"}, want: false},
		{name: "unsaved", usr: &user.User{Username: "bob", IsActive: true}, want: false},
		{name: "active", usr: &user.User{ID: "1", Username: "bob", IsActive: true}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSession(ResolveRoom("x"), tt.usr, 1).Authenticated())
		})
	}
}

func TestNewSession(t *testing.T) {
	a := NewSession(ResolveRoom("x"), nil, 0)
	b := NewSession(ResolveRoom("x"), nil, 0)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 1, cap(a.outbox))
}
