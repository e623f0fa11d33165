package api_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"campusmart/api"
	"campusmart/models"
)

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	gifData = append([]byte("GIF89a"), make([]byte, 64)...)
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStorage) Upload(_ context.Context, bucket, path, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[bucket+"/"+path] = data
	return nil
}

func (m *memoryStorage) PublicURL(bucket, path string) string {
	return "https://cdn.test/" + bucket + "/" + path
}

type testServer struct {
	*httptest.Server
	storage *memoryStorage
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	schema, err := os.ReadFile("../models/testdata/sqlite.sql")
	require.NoError(t, err)
	require.NoError(t, db.Exec(string(schema)).Error)
	require.NoError(t, db.Create(&[]models.Category{
		{ID: "books", Name: "Books", Icon: "📚", CreatedAt: time.Now()},
		{ID: "electronics", Name: "Electronics", Icon: "💻", CreatedAt: time.Now()},
	}).Error)
	return db
}

func newTestServer(t *testing.T, mutate ...func(*api.ServerConfig)) *testServer {
	t.Helper()
	db := setupDB(t)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	config := api.ServerConfig{
		HTTP: api.HTTPConfig{Session: api.SessionConfig{KeyForCookie: "sid", CookieSecure: false}},
		Auth: api.AuthConfig{PrivateKey: key, AutoConfirm: true},
		Redis: api.RedisConfig{
			KeyPrefix:        "test:",
			CategoryCacheTTL: time.Minute,
		},
	}
	for _, m := range mutate {
		m(&config)
	}

	storage := &memoryStorage{}
	server, err := api.New(api.Dependencies{DB: db, Redis: redisClient, Storage: storage}, config, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, server.Close())
	})
	return &testServer{Server: ts, storage: storage}
}

// newBrowser 回傳帶 cookie jar 的 client，模擬瀏覽器
func newBrowser(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func do(t *testing.T, client *http.Client, req *http.Request) response {
	t.Helper()
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: body}
}

func (ts *testServer) get(t *testing.T, client *http.Client, path string, headers ...string) response {
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	setHeaders(req, headers)
	return do(t, client, req)
}

func (ts *testServer) postJSON(t *testing.T, client *http.Client, path string, body any, headers ...string) response {
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	setHeaders(req, headers)
	return do(t, client, req)
}

func (ts *testServer) send(t *testing.T, client *http.Client, method, path string, headers ...string) response {
	req, err := http.NewRequest(method, ts.URL+path, nil)
	require.NoError(t, err)
	setHeaders(req, headers)
	return do(t, client, req)
}

func (ts *testServer) publish(t *testing.T, client *http.Client, fields map[string]string, image []byte, headers ...string) response {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "photo.bin")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/items", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	setHeaders(req, headers)
	return do(t, client, req)
}

func setHeaders(req *http.Request, kv []string) {
	for i := 0; i+1 < len(kv); i += 2 {
		req.Header.Set(kv[i], kv[i+1])
	}
}

func validDraft(title string) map[string]string {
	return map[string]string{
		"title":       title,
		"description": "<b>barely used</b><script>alert(1)</script>",
		"price":       "120.50",
		"category":    "books",
		"publisher":   "Amy",
		"contact":     "line: amy",
	}
}

// signUp 註冊並登入，回傳 access token
func (ts *testServer) signUp(t *testing.T, client *http.Client, email, nickname string) string {
	t.Helper()
	resp := ts.postJSON(t, client, "/auth/signup", map[string]string{
		"email": email, "password": "secret1", "nickname": nickname,
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	var out struct {
		Session struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
	}
	resp.decode(t, &out)
	require.NotEmpty(t, out.Session.AccessToken)
	return out.Session.AccessToken
}
