package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	defaultGroqModel   = "llama-3.3-70b-versatile"
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// GroqConfig configures the Groq provider
type GroqConfig struct {
	APIKey       string
	DefaultModel string
	BaseURL      string
}

// GroqProvider streams completions from Groq's OpenAI-compatible API
type GroqProvider struct {
	llm          *openai.LLM
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	opts         Options
	guard        *guard
}

// NewGroqProvider creates a Groq provider
func NewGroqProvider(cfg GroqConfig, opts Options, logger *zap.Logger) (*GroqProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultGroqModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGroqBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.DefaultModel),
		openai.WithToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groq client: %w", err)
	}

	opts = opts.withDefaults()
	return &GroqProvider{
		llm:          llm,
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		opts:         opts,
		guard:        newGuard(ProviderGroq, opts, logger),
	}, nil
}

// Name implements Provider
func (p *GroqProvider) Name() string { return ProviderGroq }

// DefaultModel implements Provider
func (p *GroqProvider) DefaultModel() string { return p.defaultModel }

// Stream implements Provider
func (p *GroqProvider) Stream(ctx context.Context, req Request, onChunk ChunkFunc) error {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	var messages []llms.MessageContent
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	callOpts := []llms.CallOption{
		llms.WithModel(model),
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxOutputTokens))
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	return p.guard.stream(ctx, onChunk, func(ctx context.Context, emit ChunkFunc) error {
		opts := append(slices.Clone(callOpts), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return emit(string(chunk))
		}))
		if _, err := p.llm.GenerateContent(ctx, messages, opts...); err != nil {
			return fmt.Errorf("groq stream failed: %w", err)
		}
		return nil
	})
}

type groqModelList struct {
	Data []groqModel `json:"data"`
}

type groqModel struct {
	ID            string `json:"id"`
	OwnedBy       string `json:"owned_by"`
	Active        *bool  `json:"active"`
	ContextWindow int    `json:"context_window"`
}

// ListModels implements Provider using GET /models. Inactive models and
// speech models are skipped.
func (p *GroqProvider) ListModels(ctx context.Context) ([]Model, error) {
	var list groqModelList
	err := p.guard.call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to list groq models: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return fmt.Errorf("failed to read groq models: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Provider: ProviderGroq, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		if err := json.Unmarshal(body, &list); err != nil {
			return fmt.Errorf("failed to decode groq models: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	models := make([]Model, 0, len(list.Data))
	for _, m := range list.Data {
		if m.Active != nil && !*m.Active {
			continue
		}
		if strings.Contains(m.ID, "whisper") || strings.Contains(m.ID, "tts") {
			continue
		}
		models = append(models, Model{
			ID:                m.ID,
			DisplayName:       m.ID,
			Provider:          ProviderGroq,
			ContextWindow:     m.ContextWindow,
			SupportsStreaming: true,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}
