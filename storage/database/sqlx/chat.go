package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/user"
)

var defaultRoomOrdering = core.DBOrdering{Field: "created_at"}

type (
	roomRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		CreatedBy string    `db:"created_by"`
		CreatedAt time.Time `db:"created_at"`
	}

	roomSummaryRow struct {
		roomRow
		ParticipantCount int `db:"participant_count"`
	}

	messageRow struct {
		ID             string      `db:"id"`
		RoomID         string      `db:"room_id"`
		SenderID       string      `db:"sender_id"`
		SenderUsername null.String `db:"sender_username"`
		Content        string      `db:"content"`
		CreatedAt      time.Time   `db:"created_at"`
	}
)

func (r roomRow) toRoom() chat.Room {
	return chat.Room{ID: r.ID, Name: r.Name, CreatorID: r.CreatedBy, CreatedAt: r.CreatedAt.UTC()}
}

func (r messageRow) toMessage() chat.Message {
	return chat.Message{
		ID:             r.ID,
		RoomID:         r.RoomID,
		SenderID:       r.SenderID,
		SenderUsername: r.SenderUsername.String,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db *sqlx.DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) FindRoomByName(ctx context.Context, name string) (chat.Room, error) {
	var r roomRow
	q := repo.db.Rebind("SELECT id, name, created_by, created_at FROM chat_rooms WHERE name = ?")
	if err := repo.db.GetContext(ctx, &r, q, name); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return chat.Room{}, chat.ErrRoomNotFound
		}
		return chat.Room{}, errors.Wrap(err, "selecting room")
	}
	return r.toRoom(), nil
}

func (repo *chatRepository) FindOrCreateRoom(ctx context.Context, name, creatorID string) (chat.Room, bool, error) {
	q := repo.db.Rebind(
		"INSERT INTO chat_rooms (id, name, created_by, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (name) DO NOTHING",
	)
	res, err := repo.db.ExecContext(ctx, q, uuid.NewString(), name, creatorID, chat.NowFunc().UTC())
	if err != nil {
		return chat.Room{}, false, errors.Wrap(err, "inserting room")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return chat.Room{}, false, errors.Wrap(err, "inserting room")
	}

	room, err := repo.FindRoomByName(ctx, name)
	if err != nil {
		return chat.Room{}, false, err
	}
	return room, n == 1, nil
}

func (repo *chatRepository) QueryRooms(ctx context.Context, orderings ...core.DBOrdering) ([]chat.RoomSummary, error) {
	q := "SELECT r.id, r.name, r.created_by, r.created_at, COUNT(p.user_id) AS participant_count " +
		"FROM chat_rooms r LEFT JOIN chat_room_participants p ON p.room_id = r.id " +
		"GROUP BY r.id, r.name, r.created_by, r.created_at " +
		"ORDER BY " + core.OrderBy(core.CleanOrderings(orderings, chat.RoomOrderingFields...), defaultRoomOrdering)

	var rows []roomSummaryRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting rooms")
	}
	rooms := make([]chat.RoomSummary, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, chat.RoomSummary{Room: r.toRoom(), ParticipantCount: r.ParticipantCount})
	}
	return rooms, nil
}

func (repo *chatRepository) AddParticipant(ctx context.Context, roomID, userID string) error {
	q := repo.db.Rebind(
		"INSERT INTO chat_room_participants (room_id, user_id, joined_at) VALUES (?, ?, ?) " +
			"ON CONFLICT (room_id, user_id) DO NOTHING",
	)
	if _, err := repo.db.ExecContext(ctx, q, roomID, userID, chat.NowFunc().UTC()); err != nil {
		return errors.Wrap(err, "inserting participant")
	}
	return nil
}

func (repo *chatRepository) QueryParticipants(ctx context.Context, roomID string) ([]user.User, error) {
	q := repo.db.Rebind(
		"SELECT u.id, u.name, u.username, u.email, u.is_active, u.roles, u.password_hash, " +
			"u.created_at, u.updated_at, u.last_login " +
			"FROM users u JOIN chat_room_participants p ON p.user_id = u.id " +
			"WHERE p.room_id = ? ORDER BY p.joined_at",
	)
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, roomID); err != nil {
		return nil, errors.Wrap(err, "selecting participants")
	}
	return toUsers(rows), nil
}

func (repo *chatRepository) DeleteRoom(ctx context.Context, roomID string) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{
		"DELETE FROM chat_messages WHERE room_id = ?",
		"DELETE FROM chat_room_participants WHERE room_id = ?",
	} {
		if _, err = tx.ExecContext(ctx, tx.Rebind(q), roomID); err != nil {
			return errors.Wrap(err, "deleting room children")
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM chat_rooms WHERE id = ?"), roomID)
	if err != nil {
		return errors.Wrap(err, "deleting room")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting room")
	}
	if n == 0 {
		err = chat.ErrRoomNotFound
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (repo *chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if msg.SenderID == "" {
		return chat.Message{}, chat.ErrSenderRequired
	}
	msg.ID = uuid.NewString()
	q := repo.db.Rebind(
		"INSERT INTO chat_messages (id, room_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)",
	)
	if _, err := repo.db.ExecContext(ctx, q, msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.CreatedAt.UTC()); err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, roomID string) ([]chat.Message, error) {
	q := repo.db.Rebind(
		"SELECT m.id, m.room_id, m.sender_id, u.username AS sender_username, m.content, m.created_at " +
			"FROM chat_messages m JOIN users u ON u.id = m.sender_id " +
			"WHERE m.room_id = ? ORDER BY m.created_at",
	)
	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, q, roomID); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toMessage())
	}
	return msgs, nil
}
