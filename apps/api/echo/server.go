package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/core/user"
)

// ServerDeps are the dependencies of the API server.
type ServerDeps struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.Service
	ChatSvc    chat.Service
	NotifSvc   notification.Service
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal

	// sockets are closed when baseCtx is done
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewServer(deps ServerDeps) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	registerChatWS(s.app.Group("/ws"), s.baseCtx, s.auth, s.deps.ChatSvc, s.deps.Logger, conf.Chat)

	v1 := s.app.Group("/v1")
	jwt := s.auth.middleware()
	authed := activeUserMiddleware(s.auth)

	registerUserAPI(v1, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerChatAPI(v1, jwt, authed, s.auth, s.deps.ChatSvc)
	registerNotificationAPI(v1, jwt, authed, s.auth, s.deps.NotifSvc)
}

// Start blocks until the server stops. Errors other than a normal close are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal relays SIGINT, SIGTERM and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	return s.shutdown
}

func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

// Shutdown closes live sockets, then waits for outstanding requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.cancel()
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Masomo Chat API!")
}
