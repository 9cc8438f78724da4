package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminToken(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminToken("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/admin", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin?token=s3cret", "", nil).Code)

	open := gin.New()
	open.GET("/admin", AdminToken(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(open, http.MethodGet, "/admin", "", nil).Code)
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memCounter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func TestSubmitRateLimit(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	counter := &memCounter{counts: map[string]int64{}}
	r := gin.New()
	r.POST("/f/:token", SubmitRateLimit(counter, 2, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/f/abc", "", nil).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/f/abc", "", nil).Code)
	w := serve(r, http.MethodPost, "/f/abc", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/f/other", "", nil).Code)
}

func TestSubmitRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.POST("/f/:token", SubmitRateLimit(&memCounter{err: errors.New("redis down")}, 1, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/f/abc", "", nil).Code)
	}
}

type memOnce struct {
	mu   sync.Mutex
	vals map[string]string
}

func (m *memOnce) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vals[key]; ok {
		return false, nil
	}
	m.vals[key] = value.(string)
	return true, nil
}

func (m *memOnce) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value.(string)
	return nil
}

func (m *memOnce) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vals[key], nil
}

func (m *memOnce) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.vals, k)
	}
	return nil
}

func TestIdempotence(t *testing.T) {
	store := &memOnce{vals: map[string]string{}}
	status := http.StatusCreated
	r := gin.New()
	r.POST("/f/:token", Idempotence(store), func(c *gin.Context) { c.Status(status) })

	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/f/abc", `{"a":1}`, nil).Code)
	w := serve(r, http.MethodPost, "/f/abc", `{"a":1}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already received")
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/f/abc", `{"a":2}`, nil).Code)

	status = http.StatusUnprocessableEntity
	assert.Equal(t, http.StatusUnprocessableEntity, serve(r, http.MethodPost, "/f/abc", `{"a":3}`, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, serve(r, http.MethodPost, "/f/abc", `{"a":3}`, nil).Code,
		"failed requests can be retried")

	hdr := map[string]string{"x-idempotence": "k1"}
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/f/abc", `{"a":4}`, hdr).Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/f/abc", `{"a":5}`, hdr).Code)
}

func TestLoggerUsesRouteTemplate(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core), "/health"))
	r.GET("/f/:token", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/f/secret-token", "", nil)
	serve(r, http.MethodGet, "/health", "", nil)
	serve(r, http.MethodGet, "/missing", "", nil)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "/f/:token", entries[0].ContextMap()["route"])
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, "/missing", entries[1].ContextMap()["route"])
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}
}
