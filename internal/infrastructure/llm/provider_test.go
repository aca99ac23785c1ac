package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func fastOptions() Options {
	return Options{RequestsPerSecond: 1000, Burst: 100, MaxRetries: 2, BaseBackoff: time.Millisecond, Timeout: 5 * time.Second}
}

func TestGroqProvider_ListModels(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"mixtral-8x7b","owned_by":"Mistral","active":true,"context_window":32768},
			{"id":"llama-3.3-70b-versatile","owned_by":"Meta","active":true,"context_window":131072},
			{"id":"whisper-large-v3","owned_by":"OpenAI","active":true},
			{"id":"old-model","active":false}
		]}`))
	}))
	defer srv.Close()

	p, err := NewGroqProvider(GroqConfig{APIKey: "secret", BaseURL: srv.URL + "/"}, fastOptions(), nil)
	require.NoError(t, err)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama-3.3-70b-versatile", models[0].ID)
	assert.Equal(t, 131072, models[0].ContextWindow)
	assert.Equal(t, ProviderGroq, models[0].Provider)
	assert.Equal(t, "mixtral-8x7b", models[1].ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGroqProvider_ListModelsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewGroqProvider(GroqConfig{APIKey: "bad", BaseURL: srv.URL}, fastOptions(), nil)
	require.NoError(t, err)

	_, err = p.ListModels(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Message, "invalid api key")
}

func TestNewGroqProvider_Defaults(t *testing.T) {
	_, err := NewGroqProvider(GroqConfig{}, Options{}, nil)
	require.Error(t, err)

	p, err := NewGroqProvider(GroqConfig{APIKey: "k"}, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, p.Name())
	assert.Equal(t, defaultGroqModel, p.DefaultModel())
	assert.Equal(t, defaultGroqBaseURL, p.baseURL)
}

func TestGeminiModel(t *testing.T) {
	m, ok := geminiModel(&genai.Model{
		Name:             "models/gemini-2.0-flash",
		DisplayName:      "Gemini 2.0 Flash",
		InputTokenLimit:  1048576,
		SupportedActions: []string{"generateContent", "countTokens"},
	})
	require.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", m.ID)
	assert.Equal(t, "Gemini 2.0 Flash", m.DisplayName)
	assert.Equal(t, 1048576, m.ContextWindow)

	_, ok = geminiModel(&genai.Model{Name: "models/embedding-001", SupportedActions: []string{"embedContent"}})
	assert.False(t, ok)

	m, ok = geminiModel(&genai.Model{Name: "models/x", SupportedActions: []string{"generateContent"}})
	require.True(t, ok)
	assert.Equal(t, "x", m.DisplayName)
}

func TestGeminiConfig(t *testing.T) {
	cfg := geminiConfig(Request{SystemPrompt: "sys", Temperature: 0.5, MaxOutputTokens: 100})
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.5, *cfg.Temperature, 1e-6)
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)

	cfg = geminiConfig(Request{})
	assert.Nil(t, cfg.SystemInstruction)
	assert.Zero(t, cfg.MaxOutputTokens)
}
