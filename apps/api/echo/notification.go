package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-chat/core/notification"
)

type notificationApi struct {
	svc  notification.Service
	auth *authenticator
}

func registerNotificationAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc, auth *authenticator, svc notification.Service) {
	api := notificationApi{svc: svc, auth: auth}

	ng := g.Group("/notifications", jwt, authed)
	ng.GET("", api.query)
	ng.POST("/:id/read", api.markAsRead)
}

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notifs, err := api.svc.QueryForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markAsRead(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkAsRead(ctx.Request().Context(), ctx.Param("id"), usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	return ctx.JSON(http.StatusOK, n)
}
