package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/core/user"
)

var NowFunc = time.Now // mockable

// Ordering fields accepted by ListRooms.
var RoomOrderingFields = []string{"name", "created_at"}

type (
	Repository interface {
		FindRoomByName(ctx context.Context, name string) (Room, error)
		// FindOrCreateRoom is atomic: concurrent callers with the same name get the same Room,
		// exactly one of them with created == true.
		FindOrCreateRoom(ctx context.Context, name, creatorID string) (room Room, created bool, err error)
		QueryRooms(ctx context.Context, orderings ...core.DBOrdering) ([]RoomSummary, error)
		// AddParticipant is a no-op when the user already participates.
		AddParticipant(ctx context.Context, roomID, userID string) error
		QueryParticipants(ctx context.Context, roomID string) ([]user.User, error)
		// DeleteRoom also deletes the room's messages and participations.
		DeleteRoom(ctx context.Context, roomID string) error
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns the room's messages by ascending timestamp.
		QueryMessages(ctx context.Context, roomID string) ([]Message, error)
	}

	Service interface {
		// Connect resolves the raw room identifier and joins the session to the room's group.
		// The room does not have to exist.
		Connect(ctx context.Context, rawRoom string, usr *user.User) (*Session, error)
		// Receive handles one inbound frame: persist, then publish to the whole group (sender included).
		Receive(ctx context.Context, sess *Session, data []byte) error
		// Disconnect is idempotent.
		Disconnect(ctx context.Context, sess *Session) error

		AppendMessage(ctx context.Context, room Room, sender *user.User, content string) (Message, error)
		OpenRoom(ctx context.Context, rawRoom string, usr user.User) (RoomDetail, error)
		CreateRoom(ctx context.Context, nr NewRoom, usr user.User) (room Room, created bool, err error)
		ListRooms(ctx context.Context, orderings ...core.DBOrdering) ([]RoomSummary, error)
		// DeleteRoom is only allowed to the room's creator; other participants get notified.
		DeleteRoom(ctx context.Context, rawRoom string, usr user.User) error
	}

	service struct {
		repo        Repository
		usrSvc      user.Service
		broadcaster Broadcaster
		notifSvc    notification.Service
		validate    *validator.Validate
		conf        core.ChatConfig
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	usrSvc user.Service,
	broadcaster Broadcaster,
	notifSvc notification.Service,
	validate *validator.Validate,
	conf core.ChatConfig,
) Service {
	if conf.GroupPrefix == "" {
		conf.GroupPrefix = DefaultGroupPrefix
	}
	return &service{
		repo:        repo,
		usrSvc:      usrSvc,
		broadcaster: broadcaster,
		notifSvc:    notifSvc,
		validate:    validate,
		conf:        conf,
	}
}

func (svc *service) resolve(raw string) RoomIdentity {
	return ResolveRoom(raw, svc.conf.GroupPrefix)
}

func (svc *service) Connect(ctx context.Context, rawRoom string, usr *user.User) (*Session, error) {
	sess := NewSession(svc.resolve(rawRoom), usr, svc.conf.SendBuffer)
	if err := svc.broadcaster.Join(ctx, sess.Room.GroupKey, sess); err != nil {
		sess.Close()
		return nil, errors.Wrap(err, "joining group")
	}
	return sess, nil
}

func (svc *service) Receive(ctx context.Context, sess *Session, data []byte) error {
	text, err := ParseInboundFrame(data)
	if err != nil {
		return err
	}
	sender, err := svc.currentSender(ctx, sess)
	if err != nil {
		return err
	}

	room, err := svc.repo.FindRoomByName(ctx, sess.Room.DisplayName)
	if err != nil {
		return errors.Wrapf(err, "finding room %q", sess.Room.DisplayName)
	}
	msg, err := svc.AppendMessage(ctx, room, &sender, text)
	if err != nil {
		return err
	}

	frame := OutboundFrame{Message: msg.Content, Username: sender.Username}
	if err := svc.broadcaster.Publish(ctx, sess.Room.GroupKey, frame); err != nil {
		return errors.Wrap(err, "publishing message")
	}
	return nil
}

// currentSender reloads the session's user so that accounts deactivated or deleted
// after connecting can no longer send.
func (svc *service) currentSender(ctx context.Context, sess *Session) (user.User, error) {
	if !sess.Authenticated() {
		return user.User{}, ErrUnauthenticatedSender
	}
	usr, err := svc.usrSvc.GetByID(ctx, sess.User.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrUnauthenticatedSender
		}
		return user.User{}, errors.Wrap(err, "loading sender")
	}
	if !usr.IsActive {
		return user.User{}, ErrUnauthenticatedSender
	}
	return usr, nil
}

func (svc *service) Disconnect(ctx context.Context, sess *Session) error {
	defer sess.Close()
	if err := svc.broadcaster.Leave(ctx, sess.Room.GroupKey, sess); err != nil {
		return errors.Wrap(err, "leaving group")
	}
	return nil
}

func (svc *service) AppendMessage(ctx context.Context, room Room, sender *user.User, content string) (Message, error) {
	if sender == nil || sender.ID == "" {
		return Message{}, ErrSenderRequired
	}
	msg, err := svc.repo.CreateMessage(ctx, Message{
		RoomID:         room.ID,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Content:        content,
		CreatedAt:      NowFunc().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	return msg, nil
}

func (svc *service) OpenRoom(ctx context.Context, rawRoom string, usr user.User) (RoomDetail, error) {
	return svc.open(ctx, svc.resolve(rawRoom).DisplayName, usr)
}

func (svc *service) open(ctx context.Context, name string, usr user.User) (RoomDetail, error) {
	room, _, err := svc.repo.FindOrCreateRoom(ctx, name, usr.ID)
	if err != nil {
		return RoomDetail{}, errors.Wrap(err, "finding or creating room")
	}
	if err := svc.repo.AddParticipant(ctx, room.ID, usr.ID); err != nil {
		return RoomDetail{}, errors.Wrap(err, "adding participant")
	}
	msgs, err := svc.repo.QueryMessages(ctx, room.ID)
	if err != nil {
		return RoomDetail{}, errors.Wrap(err, "querying messages")
	}
	participants, err := svc.repo.QueryParticipants(ctx, room.ID)
	if err != nil {
		return RoomDetail{}, errors.Wrap(err, "querying participants")
	}
	return RoomDetail{Room: room, Messages: msgs, Participants: participants}, nil
}

func (svc *service) CreateRoom(ctx context.Context, nr NewRoom, usr user.User) (Room, bool, error) {
	if err := svc.validate.Struct(nr); err != nil {
		return Room{}, false, err
	}
	nr.Name = core.CleanString(nr.Name)
	room, created, err := svc.repo.FindOrCreateRoom(ctx, nr.Name, usr.ID)
	if err != nil {
		return Room{}, false, errors.Wrap(err, "finding or creating room")
	}
	if err := svc.repo.AddParticipant(ctx, room.ID, usr.ID); err != nil {
		return Room{}, false, errors.Wrap(err, "adding participant")
	}
	return room, created, nil
}

func (svc *service) ListRooms(ctx context.Context, orderings ...core.DBOrdering) ([]RoomSummary, error) {
	orderings = core.CleanOrderings(orderings, RoomOrderingFields...)
	return svc.repo.QueryRooms(ctx, orderings...)
}

func (svc *service) DeleteRoom(ctx context.Context, rawRoom string, usr user.User) error {
	room, err := svc.repo.FindRoomByName(ctx, svc.resolve(rawRoom).DisplayName)
	if err != nil {
		if errors.Cause(err) == ErrRoomNotFound {
			return ErrNotRoomCreator
		}
		return errors.Wrap(err, "finding room")
	}
	if room.CreatorID != usr.ID {
		return ErrNotRoomCreator
	}

	participants, err := svc.repo.QueryParticipants(ctx, room.ID)
	if err != nil {
		return errors.Wrap(err, "querying participants")
	}
	for _, p := range participants {
		if p.ID == usr.ID {
			continue
		}
		_, err := svc.notifSvc.Notify(ctx, notification.NewNotification{
			UserID:        p.ID,
			Type:          notification.TypeRemoved,
			Title:         "Chat Room Deleted",
			Message:       fmt.Sprintf(`The chat room "%s" has been deleted by %s.`, room.Name, usr.DisplayName()),
			RelatedUserID: usr.ID,
		})
		if err != nil {
			return errors.Wrapf(err, "notifying participant %s", p.ID)
		}
	}

	if err := svc.repo.DeleteRoom(ctx, room.ID); err != nil {
		return errors.Wrap(err, "deleting room")
	}
	return nil
}
