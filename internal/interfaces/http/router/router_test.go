package router

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/tesis/backend/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRouter_Setup(t *testing.T) {
	t.Run("default version", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("system", "/system").GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		NewRouter(engine).Register(g).Setup()

		w := serve(engine, http.MethodGet, "/api/v1/system/ping")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pong", w.Body.String())
	})

	t.Run("custom version", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("system", "/system").GET("/ping", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		NewRouter(engine, WithAPIVersion("v2")).Register(g).Setup()

		assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodGet, "/api/v2/system/ping").Code)
		assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/system/ping").Code)
	})
}

func TestDomainGroup(t *testing.T) {
	ok := func(body string) gin.HandlerFunc {
		return func(c *gin.Context) { c.String(http.StatusOK, body) }
	}

	t.Run("methods and subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("theses", "/theses").
			GET("", ok("list")).
			POST("", ok("create")).
			PUT("/:id", ok("update")).
			DELETE("/:id", ok("delete"))
		g.Group("sections", "/:id/sections").PUT("/:name", ok("edit"))
		assert.Equal(t, "theses", g.Name())
		assert.Equal(t, "/theses", g.Prefix())

		g.RegisterRoutes(engine.Group("/api/v1"))

		tests := []struct {
			method, path, want string
		}{
			{http.MethodGet, "/api/v1/theses", "list"},
			{http.MethodPost, "/api/v1/theses", "create"},
			{http.MethodPut, "/api/v1/theses/42", "update"},
			{http.MethodDelete, "/api/v1/theses/42", "delete"},
			{http.MethodPut, "/api/v1/theses/42/sections/resumen", "edit"},
		}
		for _, tt := range tests {
			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, http.StatusOK, w.Code, "%s %s", tt.method, tt.path)
			assert.Equal(t, tt.want, w.Body.String())
		}
	})

	t.Run("middleware reaches subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("auth", "/auth").Use(func(c *gin.Context) {
			c.Header("X-Group", "auth")
			c.Next()
		})
		g.Group("credentials", "").POST("/login", ok("login"))
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := serve(engine, http.MethodPost, "/api/v1/auth/login")
		assert.Equal(t, "auth", w.Header().Get("X-Group"))
	})
}

func TestThesisAPI_Routes(t *testing.T) {
	engine := gin.New()
	h := Handlers{
		Auth:       &handler.AuthHandler{},
		Thesis:     &handler.ThesisHandler{},
		Generation: &handler.GenerationHandler{},
		Export:     &handler.ExportHandler{},
		LLM:        &handler.LLMHandler{},
		System:     handler.NewSystemHandler("", ""),
	}
	NewRouter(engine).Register(ThesisAPI(h, nil)...).Setup()

	var got []string
	for _, r := range engine.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	sort.Strings(got)

	want := []string{
		"DELETE /api/v1/theses/:id",
		"GET /api/v1/auth/me",
		"GET /api/v1/llm/providers",
		"GET /api/v1/llm/providers/:provider/models",
		"GET /api/v1/system/info",
		"GET /api/v1/system/ping",
		"GET /api/v1/theses",
		"GET /api/v1/theses/:id",
		"GET /api/v1/theses/:id/export",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/logout",
		"POST /api/v1/auth/refresh",
		"POST /api/v1/auth/register",
		"POST /api/v1/theses",
		"POST /api/v1/theses/:id/exports",
		"POST /api/v1/theses/:id/generate",
		"POST /api/v1/theses/:id/sections/:name/regenerate",
		"PUT /api/v1/theses/:id",
		"PUT /api/v1/theses/:id/sections/:name",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestThesisAPI_AuthLimitOnlyOnCredentials(t *testing.T) {
	engine := gin.New()
	h := Handlers{
		Auth:       &handler.AuthHandler{},
		Thesis:     &handler.ThesisHandler{},
		Generation: &handler.GenerationHandler{},
		Export:     &handler.ExportHandler{},
		LLM:        &handler.LLMHandler{},
		System:     handler.NewSystemHandler("", ""),
	}
	limited := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
	NewRouter(engine).Register(ThesisAPI(h, limited)...).Setup()

	for _, path := range []string{"/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/auth/refresh"} {
		assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, path).Code, path)
	}
	// no user in context, so the handler rejects before touching its service
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/auth/me").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/system/ping").Code)
}

func TestRouter_UseScopesToAPI(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	g := NewDomainGroup("theses", "/theses").GET("", func(c *gin.Context) { c.Status(http.StatusOK) })
	NewRouter(engine).
		Use(func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }).
		Register(g).
		Setup()

	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/theses").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
}
