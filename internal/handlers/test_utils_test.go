package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"markbox/internal/accounts"
	"markbox/internal/catalog"
	"markbox/internal/db"
	"markbox/internal/mail"
	"markbox/internal/notices"
	"markbox/internal/services/storage"
	"markbox/internal/signing"
)

type testEnv struct {
	db       *gorm.DB
	r        *gin.Engine
	accounts *accounts.Service
	catalog  *catalog.Service
	outbox   *mail.Outbox
	store    *storage.Memory
	inbox    notices.Inbox
	hub      *notices.Hub
}

// setupTest создаёт in-memory БД, сервисы и маршруты для тестов.
func setupTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := db.NewDB("file:"+name+"?mode=memory&cache=shared", false)
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	templates, err := mail.DefaultCatalog()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	mr := miniredis.RunT(t)

	env := &testEnv{
		db:     gdb,
		outbox: mail.NewOutbox(nil),
		store:  storage.NewMemory(),
	}
	env.hub = notices.NewHub(notices.NewRedisInbox(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 20), nil)
	env.inbox = env.hub
	env.accounts = accounts.New(gdb, signing.New("test-secret"), env.outbox, templates, env.store, accounts.Config{
		BaseURL:              "http://markbox.test",
		ActivationTimeout:    time.Hour,
		PasswordResetTimeout: time.Hour,
		TokenTTL:             map[string]time.Duration{"access": time.Minute, "refresh": time.Hour},
		BcryptCost:           bcrypt.MinCost,
	}, nil)
	env.catalog = catalog.New(gdb, env.store, 10, nil)

	r := gin.New()
	r.GET("/health", Health(gdb, nil))
	r.GET("/ws/notices", RequireAuthenticated(env.accounts), NoticesWS(env.hub, nil))

	auth := r.Group("/auth")
	auth.POST("/register", Register(env.accounts))
	auth.GET("/register/confirm/:token", ConfirmRegistration(env.accounts))
	auth.POST("/login", Login(env.accounts))
	auth.POST("/refresh", Refresh(env.accounts))
	auth.POST("/password/reset", RequestPasswordReset(env.accounts))
	auth.GET("/password/reset/:token", CheckPasswordReset(env.accounts))
	auth.POST("/password/reset/:token", ConfirmPasswordReset(env.accounts))
	auth.Use(RequireAuthenticated(env.accounts))
	auth.GET("/profile", Profile())
	auth.POST("/logout", Logout(env.accounts))
	auth.POST("/email", RequestEmailChange(env.accounts, env.inbox))
	auth.GET("/email/confirm/:token", ConfirmEmailChange(env.accounts, env.inbox))
	auth.POST("/password", ChangePassword(env.accounts, env.inbox))

	api := r.Group("/")
	api.Use(RequireAuthenticated(env.accounts))
	api.GET("/users/:id", GetUser(env.accounts))
	api.DELETE("/users/:id", DeleteUser(env.accounts, env.inbox))
	api.GET("/notices", ListNotices(env.inbox))

	api.GET("/categories", ListCategories(env.catalog))
	api.POST("/categories", CreateCategory(env.catalog, env.inbox))
	api.GET("/categories/:id", GetCategory(env.catalog))
	api.PUT("/categories/:id", UpdateCategory(env.catalog, env.inbox))
	api.DELETE("/categories/:id", DeleteCategory(env.catalog, env.inbox))
	api.POST("/categories/:id/up", MoveCategory(env.catalog, catalog.Up))
	api.POST("/categories/:id/down", MoveCategory(env.catalog, catalog.Down))

	api.GET("/items", ListItems(env.catalog))
	api.POST("/items", CreateItem(env.catalog, env.inbox))
	api.GET("/items/:id", GetItem(env.catalog))
	api.PUT("/items/:id", UpdateItem(env.catalog, env.inbox))
	api.DELETE("/items/:id", DeleteItem(env.catalog, env.inbox))
	api.GET("/items/:id/image", ItemImage(env.catalog))
	api.POST("/items/:id/up", MoveItem(env.catalog, catalog.Up))
	api.POST("/items/:id/down", MoveItem(env.catalog, catalog.Down))

	env.r = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) json(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	return e.do(t, method, path, token, r, "application/json")
}

// multipartBody собирает форму; file задаёт содержимое поля image, если не nil.
func multipartBody(t *testing.T, fields map[string]string, file []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("field: %v", err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", "upload.png")
		if err != nil {
			t.Fatalf("file: %v", err)
		}
		fw.Write(file)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("parse %q: %v", w.Body.String(), err)
	}
	return v
}

var mailToken = regexp.MustCompile(`/auth/(?:register/confirm|email/confirm|password/reset)/([A-Za-z0-9_=-]+)`)

func (e *testEnv) lastMailToken(t *testing.T) string {
	t.Helper()
	msg, ok := e.outbox.Last()
	if !ok {
		t.Fatalf("no mail sent")
	}
	m := mailToken.FindStringSubmatch(msg.Body)
	if len(m) != 2 {
		t.Fatalf("no token in %q", msg.Body)
	}
	return m[1]
}

const testPassword = "correct-horse-9"

// signup регистрирует, подтверждает и логинит пользователя; возвращает access-токен.
func (e *testEnv) signup(t *testing.T, email string) string {
	t.Helper()
	w := e.json(t, "POST", "/auth/register", "",
		`{"email":"`+email+`","password":"`+testPassword+`","password_confirm":"`+testPassword+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", w.Code, w.Body.String())
	}
	w = e.json(t, "GET", "/auth/register/confirm/"+e.lastMailToken(t), "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status %d: %s", w.Code, w.Body.String())
	}
	return e.login(t, email, testPassword)
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	w := e.json(t, "POST", "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	return decode[TokenResponse](t, w).AccessToken
}
