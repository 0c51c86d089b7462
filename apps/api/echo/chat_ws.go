package echoapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
)

var errFrameTooLarge = errors.New("frame exceeds the maximum message size")

type chatWS struct {
	baseCtx  context.Context
	auth     *authenticator
	svc      chat.Service
	logger   core.Logger
	conf     core.ChatConfig
	upgrader websocket.Upgrader
}

func registerChatWS(g *echo.Group, baseCtx context.Context, auth *authenticator, svc chat.Service, logger core.Logger, conf core.ChatConfig) {
	ws := &chatWS{
		baseCtx: baseCtx,
		auth:    auth,
		svc:     svc,
		logger:  logger,
		conf:    conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if !conf.CheckOrigin {
		ws.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	// anonymous connections are accepted; they can listen but not send
	g.GET("/chat/:room", ws.serve)
}

// serve joins the room's group, upgrades the connection, then pumps frames until either side closes.
func (ws *chatWS) serve(ctx echo.Context) error {
	usr := ws.auth.optionalUser(ctx)
	// outlives the request: leave and persist must complete after a close
	detached := context.WithoutCancel(ctx.Request().Context())

	sess, err := ws.svc.Connect(detached, ctx.Param("room"), usr)
	if err != nil {
		return errors.Wrap(err, "connecting session")
	}

	conn, err := ws.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		ws.disconnect(detached, sess)
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.writePump(conn, sess)
	}()
	ws.readPump(detached, conn, sess)
	ws.disconnect(detached, sess)
	<-done
	return nil
}

func (ws *chatWS) disconnect(ctx context.Context, sess *chat.Session) {
	if err := ws.svc.Disconnect(ctx, sess); err != nil {
		ws.logger.Error("chat: disconnecting session "+sess.ID(), err, sess.User)
	}
}

// readPump processes inbound frames sequentially until the connection fails.
func (ws *chatWS) readPump(ctx context.Context, conn *websocket.Conn, sess *chat.Session) {
	ws.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		ws.extendReadDeadline(conn)
		return nil
	})

	for {
		msgType, data, err := ws.readFrame(conn)
		switch {
		case err == errFrameTooLarge:
			ws.logger.Debug("chat: dropping oversized frame from "+sess.ID(), err, map[string]interface{}{"limit": ws.conf.MaxMessageSize})
			continue
		case err != nil:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				ws.logger.Debug("chat: reading from "+sess.ID(), err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			ws.logger.Debug("chat: dropping non-text frame from " + sess.ID())
			continue
		}
		ws.receive(ctx, sess, data)
	}
}

// readFrame reads the next frame. A frame longer than conf.MaxMessageSize is discarded
// with errFrameTooLarge and the connection stays usable; zero means no limit.
func (ws *chatWS) readFrame(conn *websocket.Conn) (int, []byte, error) {
	msgType, r, err := conn.NextReader()
	if err != nil {
		return msgType, nil, err
	}
	limit := ws.conf.MaxMessageSize
	if limit <= 0 {
		data, err := io.ReadAll(r)
		return msgType, data, err
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return msgType, nil, err
	}
	if int64(len(data)) > limit {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return msgType, nil, err
		}
		return msgType, nil, errFrameTooLarge
	}
	return msgType, data, nil
}

func (ws *chatWS) receive(ctx context.Context, sess *chat.Session, data []byte) {
	if ws.conf.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.conf.PersistTimeout)
		defer cancel()
	}

	err := ws.svc.Receive(ctx, sess, data)
	switch {
	case err == nil:
	case chat.IsDropped(err):
		ws.logger.Debug("chat: frame dropped", err, map[string]interface{}{"session": sess.ID(), "room": sess.Room.DisplayName})
	case errors.Cause(err) == chat.ErrRoomNotFound:
		ws.logger.Warn("chat: message for a missing room", err, map[string]interface{}{"room": sess.Room.DisplayName}, sess.User)
	default:
		ws.logger.Error("chat: receiving frame", err, map[string]interface{}{"room": sess.Room.DisplayName}, sess.User)
	}
}

// writePump is the only writer of conn. It closes conn when it returns.
func (ws *chatWS) writePump(conn *websocket.Conn, sess *chat.Session) {
	ticker := time.NewTicker(ws.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sess.Outbox():
			ws.extendWriteDeadline(conn)
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				ws.logger.Debug("chat: writing to "+sess.ID(), err)
				return
			}
		case <-ticker.C:
			ws.extendWriteDeadline(conn)
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ws.baseCtx.Done():
			ws.extendWriteDeadline(conn)
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

func (ws *chatWS) pingPeriod() time.Duration {
	if ws.conf.PingPeriod > 0 {
		return ws.conf.PingPeriod
	}
	return 54 * time.Second
}

func (ws *chatWS) extendReadDeadline(conn *websocket.Conn) {
	if ws.conf.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(ws.conf.PongWait))
	}
}

func (ws *chatWS) extendWriteDeadline(conn *websocket.Conn) {
	if ws.conf.WriteWait > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(ws.conf.WriteWait))
	}
}
