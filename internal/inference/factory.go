package inference

import (
	"fmt"

	"fitbot/internal/config"
)

// Backend names accepted by CHAT_BACKEND
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
)

// SupportedModels lists the text-generation models the HuggingFace backend is known to work with
var SupportedModels = []string{
	"mistralai/Mistral-7B-Instruct-v0.2",
	"meta-llama/Llama-2-7b-chat-hf",
	"tiiuae/falcon-7b-instruct",
	"gpt2",
}

// NewBackend creates the generative backend selected in cfg.
// A missing API key still yields a backend; it fails fast with KindConfiguration.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case ProviderHuggingFace, "":
		return NewHuggingFace(cfg.HFAPIKey, cfg.HFAPIURL, cfg.Chat.Model, cfg.Chat.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Chat.Model, cfg.Chat.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported chat backend: %s", cfg.Backend)
	}
}
