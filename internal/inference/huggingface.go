package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceBackend calls the HuggingFace Inference API text-generation task
type HuggingFaceBackend struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewHuggingFace creates a HuggingFace backend. timeout bounds the whole HTTP exchange.
func NewHuggingFace(apiKey, baseURL, model string, timeout time.Duration) *HuggingFaceBackend {
	return &HuggingFaceBackend{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type hfParameters struct {
	Temperature    float64 `json:"temperature"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	DoSample       bool    `json:"do_sample"`
	TopP           float64 `json:"top_p"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (h *HuggingFaceBackend) Model() string {
	return h.model
}

func (h *HuggingFaceBackend) Configured() bool {
	return h.apiKey != ""
}

func (h *HuggingFaceBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	if !h.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(hfRequest{
		Inputs: req.Prompt,
		Parameters: hfParameters{
			Temperature:    req.Temperature,
			MaxNewTokens:   req.MaxNewTokens,
			DoSample:       req.DoSample,
			TopP:           req.TopP,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", h.baseURL, h.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ClassifyHTTPError(resp.StatusCode, string(respBody))
	}

	text, err := parseGeneration(respBody)
	if err != nil {
		return nil, &BackendError{Kind: KindUnclassified, Message: err.Error(), Cause: err}
	}

	return &Result{Text: strings.TrimSpace(text), Model: h.model}, nil
}

// parseGeneration accepts both the list and single-object response shapes
func parseGeneration(body []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("empty generation list")
		}
		return list[0].GeneratedText, nil
	}

	var single hfGeneration
	if err := json.Unmarshal(body, &single); err != nil {
		return "", fmt.Errorf("failed to decode generation: %w", err)
	}
	return single.GeneratedText, nil
}
