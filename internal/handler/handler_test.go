package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/postdesk/internal/auth"
	"github.com/postdesk/internal/db"
	"github.com/postdesk/internal/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	api      *API
	engine   *gin.Engine
	gdb      *gorm.DB
	store    *storage.LocalStore
	category db.Category
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(db.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	for _, u := range []struct{ name, role string }{{"admin", db.RoleAdmin}, {"alice", db.RoleAuthor}, {"bob", db.RoleAuthor}} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.name+"-pw"), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, gdb.Create(&db.User{Username: u.name, Password: string(hash), Role: u.role}).Error)
	}

	category := db.Category{Name: "News", Slug: "news"}
	require.NoError(t, gdb.Create(&category).Error)

	store, err := storage.NewLocalStore(t.TempDir(), "/static/uploads")
	require.NoError(t, err)

	api := NewAPI(gdb, store, Options{Tokens: auth.NewTokenManager("test-secret", time.Hour)})
	return &testEnv{api: api, engine: newTestEngine(api), gdb: gdb, store: store, category: category}
}

func newTestEngine(api *API) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("postdesk_session", cookie.NewStore([]byte("test-secret"))))

	group := r.Group("/admin/api")
	group.POST("/login", api.Login)
	group.POST("/logout", api.Logout)

	protected := group.Group("")
	protected.Use(api.AuthRequired())
	protected.GET("/posts", api.GetPosts)
	protected.GET("/posts/search", api.SearchPosts)
	protected.GET("/posts/:slug", api.GetPost)
	protected.POST("/posts", api.CreatePost)
	protected.PUT("/posts/:slug", api.UpdatePost)
	protected.DELETE("/posts/:slug", api.DeletePost)
	protected.POST("/editor/images", api.UploadEditorImage)
	protected.GET("/tags", api.GetTags)
	protected.POST("/tags", api.CreateTag)
	protected.DELETE("/tags/:id", api.DeleteTag)
	protected.GET("/categories", api.GetCategories)
	protected.POST("/categories", api.CreateCategory)
	protected.DELETE("/categories/:id", AdminRequired(), api.DeleteCategory)
	protected.POST("/maintenance/clean-temp-images", AdminRequired(), api.CleanTempImages)
	return r
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": username + "-pw"})
	req := httptest.NewRequest(http.MethodPost, "/admin/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := e.do(t, req, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, f.filename))
		header.Set("Content-Type", f.contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func pngFile(t *testing.T, field string, width, height int) formFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return formFile{field: field, filename: "image.png", contentType: "image/png", data: buf.Bytes()}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	return payload
}
