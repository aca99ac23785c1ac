package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tesis/backend/internal/infrastructure/llm"
)

// LLMHandler exposes the configured providers and their models
type LLMHandler struct {
	BaseHandler
	registry  *llm.Registry
	catalogue *llm.ModelCatalogue
}

// NewLLMHandler creates a new LLMHandler
func NewLLMHandler(registry *llm.Registry, catalogue *llm.ModelCatalogue) *LLMHandler {
	return &LLMHandler{registry: registry, catalogue: catalogue}
}

// ListProviders returns provider names and the default.
// GET /api/v1/llm/providers
func (h *LLMHandler) ListProviders(c *gin.Context) {
	h.Success(c, ProvidersResponse{
		Providers: h.registry.Names(),
		Default:   h.registry.DefaultName(),
	})
}

// ListModels returns the cached model catalogue of a provider.
// Add ?refresh=true to bypass the cache.
// GET /api/v1/llm/providers/:provider/models
func (h *LLMHandler) ListModels(c *gin.Context) {
	provider := c.Param("provider")
	ctx := c.Request.Context()

	if c.Query("refresh") == "true" {
		if err := h.catalogue.Invalidate(ctx, provider); err != nil {
			h.HandleError(c, err)
			return
		}
	}

	models, err := h.catalogue.Models(ctx, provider)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]ModelResponse, 0, len(models))
	for _, m := range models {
		out = append(out, ModelResponse(m))
	}
	h.Success(c, out)
}
