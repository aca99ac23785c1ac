package handler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	appidentity "github.com/tesis/backend/internal/application/identity"
	apptesis "github.com/tesis/backend/internal/application/thesis"
	"github.com/tesis/backend/internal/infrastructure/auth"
	"github.com/tesis/backend/internal/infrastructure/cache"
	"github.com/tesis/backend/internal/infrastructure/config"
	"github.com/tesis/backend/internal/infrastructure/export"
	"github.com/tesis/backend/internal/infrastructure/llm"
	"github.com/tesis/backend/internal/infrastructure/llm/llmtest"
	"github.com/tesis/backend/internal/infrastructure/persistence"
	"github.com/tesis/backend/internal/infrastructure/persistence/models"
	"github.com/tesis/backend/internal/infrastructure/storage"
	"github.com/tesis/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the handlers over an in-memory SQLite database, a
// scripted LLM provider and file system storage
type testEnv struct {
	router   *gin.Engine
	provider *llmtest.FakeProvider
	cache    *cache.InMemoryStore
}

type envOption func(*envConfig)

type envConfig struct {
	heartbeat time.Duration
}

func withHeartbeat(d time.Duration) envOption {
	return func(c *envConfig) { c.heartbeat = d }
}

func newTestEnv(t *testing.T, chunks []string, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{heartbeat: time.Hour}
	for _, o := range opts {
		o(&cfg)
	}

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	store := cache.NewInMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "handler-test-secret-at-least-32-chars",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "tesis-backend",
	})
	blacklist := auth.NewStoreTokenBlacklist(store)

	provider := llmtest.NewFakeProvider("fake", chunks...)
	provider.Models = []llm.Model{{ID: "fake-model", DisplayName: "Fake", Provider: "fake", SupportsStreaming: true}}
	registry := llm.NewRegistry("fake")
	registry.Register(provider)
	prompts, err := llm.NewPromptBuilder(nil)
	require.NoError(t, err)

	exporter, err := export.NewExporter(nil)
	require.NoError(t, err)
	files, err := storage.NewFileSystemStorage(&storage.FileSystemStorageConfig{
		BasePath: t.TempDir(),
		BaseURL:  "/files",
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)

	theses := persistence.NewGormThesisRepository(db)
	users := persistence.NewGormUserRepository(db)
	log := zap.NewNop()

	authHandler := NewAuthHandler(appidentity.NewAuthService(users, jwtService, blacklist, log))
	thesisHandler := NewThesisHandler(apptesis.NewThesisService(theses, log))
	genHandler := NewGenerationHandler(apptesis.NewGenerationService(theses, registry, prompts, nil, apptesis.GenerationConfig{}, log), cfg.heartbeat)
	exportHandler := NewExportHandler(apptesis.NewExportService(theses, exporter, files, log))
	llmHandler := NewLLMHandler(registry, llm.NewModelCatalogue(registry, store, time.Hour, log))

	middleware.SetupValidator()
	r := gin.New()
	r.Use(middleware.RequestID())
	jwtCfg := middleware.DefaultJWTConfig(jwtService)
	jwtCfg.TokenBlacklist = blacklist
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtCfg))

	api := r.Group("/api/v1")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.RefreshToken)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.GetCurrentUser)

	api.POST("/theses", thesisHandler.Create)
	api.GET("/theses", thesisHandler.List)
	api.GET("/theses/:id", thesisHandler.Get)
	api.PUT("/theses/:id", thesisHandler.Update)
	api.DELETE("/theses/:id", thesisHandler.Delete)
	api.PUT("/theses/:id/sections/:name", thesisHandler.EditSection)
	api.POST("/theses/:id/generate", genHandler.Generate)
	api.POST("/theses/:id/sections/:name/regenerate", genHandler.RegenerateSection)
	api.GET("/theses/:id/export", exportHandler.Download)
	api.POST("/theses/:id/exports", exportHandler.Archive)

	api.GET("/llm/providers", llmHandler.ListProviders)
	api.GET("/llm/providers/:provider/models", llmHandler.ListModels)

	return &testEnv{router: r, provider: provider, cache: store}
}

// do sends a JSON request and returns the recorder
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// register creates an account and returns its tokens
func (e *testEnv) register(t *testing.T, email string) session {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":        email,
		"display_name": "Ana Pérez",
		"password":     "correcto-123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return session{
		UserID:       resp.Data.User.ID.String(),
		AccessToken:  resp.Data.Token.AccessToken,
		RefreshToken: resp.Data.Token.RefreshToken,
	}
}

func validMetadata() map[string]any {
	return map[string]any{
		"title":        "Redes neuronales para el diagnóstico temprano",
		"institution":  "Universidad Nacional",
		"author":       "Ana Pérez",
		"career":       "Ingeniería de Sistemas",
		"degree_level": "LICENCIATURA",
		"year":         2026,
		"language":     "es",
	}
}

// createThesis stores a thesis through the API and returns it
func (e *testEnv) createThesis(t *testing.T, s session) map[string]any {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/theses", s.AccessToken, validMetadata())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataOf(t, w)
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

// sseEvent is one parsed Server-Sent Event
type sseEvent struct {
	Name string
	ID   string
	Data map[string]any
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.Name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "id: "):
			cur.ID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.Data))
		}
	}
	require.NoError(t, sc.Err())
	return events
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
