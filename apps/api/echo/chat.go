package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-chat/core/chat"
)

type chatApi struct {
	svc  chat.Service
	auth *authenticator
}

func registerChatAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc, auth *authenticator, svc chat.Service) {
	api := chatApi{svc: svc, auth: auth}

	rg := g.Group("/chat/rooms", jwt, authed)
	rg.GET("", api.query)
	rg.POST("", api.create)
	rg.GET("/:room", api.retrieve)
	rg.DELETE("/:room", api.destroy)
}

// Handlers

func (api *chatApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	rooms, err := api.svc.ListRooms(ctx.Request().Context(), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	if rooms == nil {
		rooms = []chat.RoomSummary{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *chatApi) create(ctx echo.Context) error {
	var data chat.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	room, created, err := api.svc.CreateRoom(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, room)
}

// retrieve returns the room page data, creating the room on first visit.
func (api *chatApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	detail, err := api.svc.OpenRoom(ctx.Request().Context(), ctx.Param("room"), usr)
	if err != nil {
		return errors.Wrap(err, "opening room")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *chatApi) destroy(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.DeleteRoom(ctx.Request().Context(), ctx.Param("room"), usr); err != nil {
		return errors.Wrap(err, "deleting room")
	}
	return ctx.NoContent(http.StatusNoContent)
}
