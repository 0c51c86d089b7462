package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/core/user"
	"github.com/trezcool/masomo-chat/storage/database/inmem"
	"github.com/trezcool/masomo-chat/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	srv       *Server
	hub       *chat.Hub
	logger    *testutil.Logger
	usrRepo   user.Repository
	chatRepo  chat.Repository
	notifRepo notification.Repository
}

func setup(t *testing.T, opts ...func(conf *core.Config)) *testApp {
	t.Helper()

	conf := &core.Config{
		AppName:   "Masomo",
		SecretKey: "test-secret",
		TestMode:  true,
		Server: core.ServerConfig{
			DisableReqLogs:            true,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Chat: core.ChatConfig{
			SendBuffer:     16,
			MaxMessageSize: 4096,
			WriteWait:      time.Second,
			PongWait:       5 * time.Second,
			PingPeriod:     4 * time.Second,
			PersistTimeout: time.Second,
		},
	}

	for _, opt := range opts {
		opt(conf)
	}

	// set up DB & repos
	db := inmemdb.Open()
	app := &testApp{
		logger:    testutil.NewLogger(),
		usrRepo:   inmemdb.NewUserRepository(db),
		chatRepo:  inmemdb.NewChatRepository(db),
		notifRepo: inmemdb.NewNotificationRepository(db),
	}
	app.hub = chat.NewHub(app.logger)

	// set up services
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(app.usrRepo)
	notifSvc := notification.NewService(app.notifRepo, validate)
	app.srv = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     app.logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		ChatSvc:    chat.NewService(app.chatRepo, usrSvc, app.hub, notifSvc, validate, conf.Chat),
		NotifSvc:   notifSvc,
	})
	t.Cleanup(func() { _ = app.srv.Close() })
	return app
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.srv.auth.generateToken(app.srv.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
