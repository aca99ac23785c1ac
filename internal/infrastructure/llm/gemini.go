package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini provider
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	BaseURL      string // optional API endpoint override
}

// GeminiProvider streams completions through the Google GenAI SDK
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	opts         Options
	guard        *guard
}

// NewGeminiProvider creates a Gemini provider
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, opts Options, logger *zap.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	opts = opts.withDefaults()
	return &GeminiProvider{
		client:       client,
		defaultModel: cfg.DefaultModel,
		opts:         opts,
		guard:        newGuard(ProviderGemini, opts, logger),
	}, nil
}

// Name implements Provider
func (p *GeminiProvider) Name() string { return ProviderGemini }

// DefaultModel implements Provider
func (p *GeminiProvider) DefaultModel() string { return p.defaultModel }

// Stream implements Provider
func (p *GeminiProvider) Stream(ctx context.Context, req Request, onChunk ChunkFunc) error {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	config := geminiConfig(req)

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	return p.guard.stream(ctx, onChunk, func(ctx context.Context, emit ChunkFunc) error {
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				return fmt.Errorf("gemini stream failed: %w", err)
			}
			if err := emit(resp.Text()); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListModels implements Provider. Only models that support
// generateContent are returned.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	err := p.guard.call(ctx, func(ctx context.Context) error {
		models = models[:0]
		for m, err := range p.client.Models.All(ctx) {
			if err != nil {
				return fmt.Errorf("failed to list gemini models: %w", err)
			}
			if model, ok := geminiModel(m); ok {
				models = append(models, model)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

func geminiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

func geminiModel(m *genai.Model) (Model, bool) {
	if m == nil || !slices.Contains(m.SupportedActions, "generateContent") {
		return Model{}, false
	}
	id := strings.TrimPrefix(m.Name, "models/")
	name := m.DisplayName
	if name == "" {
		name = id
	}
	return Model{
		ID:                id,
		DisplayName:       name,
		Provider:          ProviderGemini,
		ContextWindow:     int(m.InputTokenLimit),
		SupportsStreaming: true,
	}, true
}
