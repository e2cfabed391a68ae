package inference

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend sends the formatted prompt to any OpenAI-compatible chat completions endpoint
type OpenAIBackend struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewOpenAI creates an OpenAI-compatible backend. An empty baseURL uses the OpenAI default.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) *OpenAIBackend {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(config),
		apiKey: apiKey,
		model:  model,
	}
}

func (o *OpenAIBackend) Model() string {
	return o.model
}

func (o *OpenAIBackend) Configured() bool {
	return o.apiKey != ""
}

func (o *OpenAIBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	if !o.Configured() {
		return nil, ErrNotConfigured
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxNewTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
	}
	if !req.DoSample {
		// Greedy decoding
		chatReq.Temperature = 0
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, Classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &BackendError{Kind: KindUnclassified, Message: "no choices in completion response"}
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}
	return &Result{Text: strings.TrimSpace(resp.Choices[0].Message.Content), Model: model}, nil
}
