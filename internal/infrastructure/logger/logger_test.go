package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	t.Run("writes to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		l, err := New(&Config{Level: "debug", Format: "json", Output: path})
		require.NoError(t, err)
		l.Info("hello")
		require.NoError(t, l.Sync())
	})

	t.Run("fails on unwritable output", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "app.log")})
		assert.Error(t, err)
	})

	t.Run("environment presets", func(t *testing.T) {
		l, err := NewForEnvironment("production")
		require.NoError(t, err)
		assert.NotNil(t, l)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestL_EnrichesFromContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")

	L(ctx).Info("generation finished")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, "", GetTraceID(ctx))
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, L(context.Background()))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "test-req-123")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core), "/health"))
	router.GET("/test", func(c *gin.Context) {
		assert.Equal(t, "test-req-123", GetRequestID(c.Request.Context()))
		GetGinLogger(c).Info("inside handler")
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/stream", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.String(http.StatusOK, "event: done\ndata: {}\n\n")
	})
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/test", "/health", "/stream", "/missing"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
	}

	var messages []string
	for _, e := range recorded.All() {
		messages = append(messages, e.Message)
		if e.Message == "HTTP Request" && e.ContextMap()["path"] == "/missing" {
			assert.Equal(t, zapcore.WarnLevel, e.Level)
		}
		assert.Equal(t, "test-req-123", e.ContextMap()["request_id"])
		assert.NotEqual(t, "/health", e.ContextMap()["path"])
	}
	assert.Equal(t, []string{"inside handler", "HTTP Request", "SSE stream closed", "HTTP Request"}, messages)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INTERNAL")
	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "Panic recovered", recorded.All()[0].Message)
}

func TestGormLogger_Trace(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info,
		WithSlowThreshold(10*time.Millisecond),
		WithMaxSQLLength(20),
	)
	ctx := WithRequestID(context.Background(), "req-9")
	long := "INSERT INTO thesis_sections VALUES ('" + strings.Repeat("x", 100) + "')"

	gl.Trace(ctx, time.Now(), func() (string, int64) { return long, 1 }, nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 2", 0 }, gormlogger.ErrRecordNotFound)

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "SQL Query", entries[0].Message)
	assert.True(t, strings.HasSuffix(entries[0].ContextMap()["sql"].(string), "...(truncated)"))
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
	assert.Contains(t, entries[1].Message, "SLOW SQL")

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 3", 0 }, nil)
	assert.Len(t, recorded.All(), 2)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
