package handler

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// ProvidersResponse lists the configured LLM providers
type ProvidersResponse struct {
	Providers []string `json:"providers"`
	Default   string   `json:"default"`
}

// ModelResponse is one model of a provider
type ModelResponse struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	Provider          string `json:"provider"`
	ContextWindow     int    `json:"context_window,omitempty"`
	SupportsStreaming bool   `json:"supports_streaming"`
}
