package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-ddd-user-accounts/config"
	"github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	handlers "github.com/oksasatya/go-ddd-user-accounts/internal/interface/http"
	"github.com/oksasatya/go-ddd-user-accounts/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/storage"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/validation"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validation.Init()
	os.Exit(m.Run())
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   any             `json:"error"`
}

type userBody struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	IsSuperuser bool     `json:"is_superuser"`
	AvatarPath  string   `json:"avatar_path"`
	Following   []string `json:"following"`
}

type fixture struct {
	router    *gin.Engine
	svc       *application.Service
	sender    *captureSender
	avatarDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := newMemDB()
	users := userRepo{db}
	jwt := helpers.NewJWTManager("access", "refresh", "reset", time.Minute, time.Hour)
	cfg := &config.Config{
		ProjectName:                "Acme",
		ServerHost:                 "https://acme.test",
		EmailsEnabledFlag:          true,
		EmailTransport:             "smtp",
		SMTPHost:                   "smtp.test",
		SMTPPort:                   25,
		EmailsFromEmail:            "noreply@acme.test",
		EmailResetTokenExpireHours: 48,
	}
	sender := &captureSender{}
	notifier := application.NewNotificationService(cfg, sender, nil, nil, nil)
	svc := application.NewService(users, jwt, rdb, nil, nil, notifier, time.Hour)
	dir := t.TempDir()
	avatars := application.NewAvatarService(users, storage.NewLocal(dir), nil, 1<<16, nil)
	follows := application.NewFollowService(users, followRepo{db}, nil)

	uh := handlers.NewUserHandler(svc, avatars, nil, "", false, 1<<16)
	ah := handlers.NewAuthHandler(svc, nil)
	fh := handlers.NewFollowHandler(follows, nil)
	adm := handlers.NewAdminHandler(svc, notifier, nil)
	eh := handlers.NewEmailHandler(notifier, nil)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	api := r.Group("/api")
	api.POST("/login", uh.Login)
	api.POST("/refresh", uh.Refresh)
	api.POST("/register", uh.Register)
	api.POST("/auth/password/recover", ah.RecoverPassword)
	api.POST("/auth/password/reset", ah.ResetPassword)

	authed := api.Group("", middleware.Auth(svc, jwt))
	authed.POST("/logout", uh.Logout)
	authed.GET("/profile", uh.GetProfile)
	authed.PUT("/profile", uh.UpdateProfile)
	authed.POST("/profile/avatar", uh.UploadAvatar)
	authed.GET("/users/search", uh.Search)
	authed.POST("/users/:id/:action", fh.Follow)
	authed.GET("/users/:id/following", fh.Following)
	authed.GET("/users/:id/followers", fh.Followers)

	admin := authed.Group("/admin", middleware.RequireSuperuser(svc))
	admin.POST("/users", adm.CreateUser)
	admin.DELETE("/users/:id", adm.DeleteUser)
	admin.POST("/email/test", eh.Test)

	return &fixture{router: r, svc: svc, sender: sender, avatarDir: dir}
}

func (f *fixture) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (f *fixture) json(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req, token)
}

func (f *fixture) createUser(t *testing.T, email string, superuser bool) *entity.User {
	t.Helper()
	u, err := f.svc.Create(context.Background(), entity.UserCreate{Email: email, Password: "password1", FullName: "Test User", IsSuperuser: superuser})
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T, email, password string) string {
	t.Helper()
	rec, env := f.json(t, http.MethodPost, "/api/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := env.Meta["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func decodeUser(t *testing.T, env envelope) userBody {
	t.Helper()
	var u userBody
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	rec, env := f.json(t, http.MethodPost, "/api/register", map[string]string{"email": "ann@example.com", "password": "password1", "full_name": "Ann"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ann@example.com", decodeUser(t, env).Email)

	rec, env = f.json(t, http.MethodPost, "/api/register", map[string]string{"email": "ann@example.com", "password": "password1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "USER_EMAIL_TAKEN", env.Code)

	rec, env = f.json(t, http.MethodPost, "/api/register", map[string]string{"email": "bob@example.com", "password": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "password")

	rec, env = f.json(t, http.MethodPost, "/api/login", map[string]string{"email": "ann@example.com", "password": "nope-nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Code)

	rec, _ = f.json(t, http.MethodPost, "/api/login", map[string]string{"email": "ann@example.com", "password": "password1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, cookieValue(rec, helpers.AccessCookie))
	assert.NotEmpty(t, cookieValue(rec, helpers.RefreshCookie))

	token := f.login(t, "ann@example.com", "password1")
	rec, env = f.json(t, http.MethodGet, "/api/profile", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ann", decodeUser(t, env).FullName)

	rec, _ = f.json(t, http.MethodGet, "/api/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotatesSessionAndLogout(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ann@example.com", false)

	rec, env := f.json(t, http.MethodPost, "/api/login", map[string]string{"email": "ann@example.com", "password": "password1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	oldAccess := env.Meta["access_token"].(string)
	refresh := cookieValue(rec, helpers.RefreshCookie)

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	req.AddCookie(&http.Cookie{Name: helpers.RefreshCookie, Value: refresh})
	rec, _ = f.do(t, req, "")
	require.Equal(t, http.StatusOK, rec.Code)
	newAccess := cookieValue(rec, helpers.AccessCookie)
	require.NotEmpty(t, newAccess)

	rec, _ = f.json(t, http.MethodGet, "/api/profile", nil, oldAccess)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.json(t, http.MethodPost, "/api/logout", nil, newAccess)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.json(t, http.MethodGet, "/api/profile", nil, newAccess)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec, _ = f.do(t, req, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ann@example.com", false)
	token := f.login(t, "ann@example.com", "password1")

	rec, env := f.json(t, http.MethodPut, "/api/profile", map[string]any{"full_name": "Ann B"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decodeUser(t, env)
	assert.Equal(t, "Ann B", u.FullName)
	assert.Equal(t, "ann@example.com", u.Email)

	rec, env = f.json(t, http.MethodPut, "/api/profile", map[string]any{"email": "not-an-email"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "email")

	rec, _ = f.json(t, http.MethodPut, "/api/profile", map[string]any{"password": "new-password"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	f.login(t, "ann@example.com", "new-password")
}

func TestFollowEndpoints(t *testing.T) {
	f := newFixture(t)
	ann := f.createUser(t, "ann@example.com", false)
	bob := f.createUser(t, "bob@example.com", false)
	token := f.login(t, "ann@example.com", "password1")

	rec, env := f.json(t, http.MethodPost, "/api/users/"+bob.ID+"/follow", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{bob.ID}, decodeUser(t, env).Following)

	rec, env = f.json(t, http.MethodPost, "/api/users/"+bob.ID+"/follow", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{bob.ID}, decodeUser(t, env).Following)

	rec, env = f.json(t, http.MethodGet, "/api/users/"+bob.ID+"/followers", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), ann.ID)

	rec, env = f.json(t, http.MethodPost, "/api/users/"+bob.ID+"/unfollow", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeUser(t, env).Following)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"bad action", "/api/users/" + bob.ID + "/block", http.StatusBadRequest, "FOLLOW_ACTION_INVALID"},
		{"self", "/api/users/" + ann.ID + "/follow", http.StatusBadRequest, "FOLLOW_SELF"},
		{"unknown target", "/api/users/missing/follow", http.StatusNotFound, "USER_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.json(t, http.MethodPost, tt.path, nil, token)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, env.Code)
		})
	}

	rec, _ = f.json(t, http.MethodGet, "/api/users/missing/following", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

var tokenInLink = regexp.MustCompile(`reset-password\?token=([A-Za-z0-9._-]+)`)

func TestPasswordRecoveryFlow(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ann@example.com", false)

	rec, _ := f.json(t, http.MethodPost, "/api/auth/password/recover", map[string]string{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.sender.sent)

	rec, _ = f.json(t, http.MethodPost, "/api/auth/password/recover", map[string]string{"email": "ann@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	msg := f.sender.last()
	assert.Equal(t, "ann@example.com", msg.To)
	assert.Contains(t, msg.Subject, "Acme")
	m := tokenInLink.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2, msg.HTML)

	body := map[string]string{"token": m[1], "new_password": "brand-new-pass"}
	rec, _ = f.json(t, http.MethodPost, "/api/auth/password/reset", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	f.login(t, "ann@example.com", "brand-new-pass")

	rec, env := f.json(t, http.MethodPost, "/api/auth/password/reset", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RESET_TOKEN_USED", env.Code)

	rec, env = f.json(t, http.MethodPost, "/api/auth/password/reset", map[string]string{"token": "garbage", "new_password": "brand-new-pass"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RESET_TOKEN_INVALID", env.Code)
}

func TestPasswordRecoveryDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ann@example.com", false)
	f.sender.fail(errors.New("connection refused"))

	rec, _ := f.json(t, http.MethodPost, "/api/auth/password/recover", map[string]string{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.json(t, http.MethodPost, "/api/auth/password/recover", map[string]string{"email": "ann@example.com"}, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EMAIL_SEND_FAILED", env.Code)
	assert.False(t, env.Success)
}

func multipartFile(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture(t)
	ann := f.createUser(t, "ann@example.com", false)
	token := f.login(t, "ann@example.com", "password1")

	rec, env := f.do(t, multipartFile(t, "me.png", pngHeader), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decodeUser(t, env)
	assert.True(t, strings.HasPrefix(u.AvatarPath, f.avatarDir))
	assert.Contains(t, u.AvatarPath, "avatars/"+ann.ID+"/me_")
	assert.True(t, strings.HasSuffix(u.AvatarPath, ".png"))
	assert.FileExists(t, u.AvatarPath)

	rec, env = f.do(t, multipartFile(t, "notes.png", []byte("just some text")), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AVATAR_NOT_IMAGE", env.Code)

	rec, env = f.do(t, multipartFile(t, "noext", pngHeader), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "AVATAR_FILENAME_INVALID", env.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = f.do(t, req, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchWithoutIndex(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ann@example.com", false)
	token := f.login(t, "ann@example.com", "password1")

	rec, env := f.json(t, http.MethodGet, "/api/users/search?q=ann", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), env.Meta["count"])

	rec, _ = f.json(t, http.MethodGet, "/api/users/search", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUsers(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root@example.com", true)
	f.createUser(t, "ann@example.com", false)
	rootToken := f.login(t, "root@example.com", "password1")
	annToken := f.login(t, "ann@example.com", "password1")

	payload := map[string]any{"email": "new@example.com", "password": "password1", "full_name": "New"}
	rec, _ := f.json(t, http.MethodPost, "/api/admin/users", payload, annToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := f.json(t, http.MethodPost, "/api/admin/users", payload, rootToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeUser(t, env)
	email, _ := env.Meta["email"].(map[string]any)
	assert.Equal(t, true, email["sent"])
	msg := f.sender.last()
	assert.Equal(t, "new@example.com", msg.To)
	assert.NotContains(t, msg.HTML, "password1")

	rec, _ = f.json(t, http.MethodDelete, "/api/admin/users/"+created.ID, nil, rootToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.json(t, http.MethodDelete, "/api/admin/users/"+created.ID, nil, rootToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", env.Code)
}

func TestTestEmail(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root@example.com", true)
	token := f.login(t, "root@example.com", "password1")

	rec, _ := f.json(t, http.MethodPost, "/api/admin/email/test", map[string]any{"to": "ops@example.com"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := f.sender.last()
	assert.Equal(t, "Acme - Test email", msg.Subject)
	assert.Contains(t, msg.HTML, "ops@example.com")

	rec, env := f.json(t, http.MethodPost, "/api/admin/email/test", map[string]any{"to": "ops@example.com", "queue": true}, token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "EMAIL_QUEUE_DISABLED", env.Code)
}
