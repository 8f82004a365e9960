package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultCohereBaseURL = "https://api.cohere.com"
	defaultCohereModel   = "command-r-plus-08-2024"
)

// CohereProvider implements Provider for the Cohere chat v2 API.
type CohereProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// CohereOption configures a CohereProvider.
type CohereOption func(*CohereProvider)

// WithCohereBaseURL sets the base URL (for testing).
func WithCohereBaseURL(url string) CohereOption {
	return func(p *CohereProvider) {
		p.baseURL = url
	}
}

// WithCohereModel sets the model used when a request names none.
func WithCohereModel(model string) CohereOption {
	return func(p *CohereProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// WithCohereHTTPClient sets a custom HTTP client.
func WithCohereHTTPClient(client *http.Client) CohereOption {
	return func(p *CohereProvider) {
		p.client = client
	}
}

// NewCohereProvider creates a new Cohere provider.
func NewCohereProvider(apiKey string, opts ...CohereOption) (*CohereProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cohere API key is required")
	}
	p := &CohereProvider{
		apiKey:       apiKey,
		baseURL:      defaultCohereBaseURL,
		defaultModel: defaultCohereModel,
		client:       http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// cohereRequest is the body of POST /v2/chat. System prompts travel as a
// message with role "system".
type cohereRequest struct {
	Model       string          `json:"model"`
	Messages    []cohereMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type cohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereResponse struct {
	ID           string `json:"id"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Usage struct {
		Tokens struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"tokens"`
	} `json:"usage"`
}

func (p *CohereProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := cohereRequest{Model: model}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, cohereMessage(m))
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		body.Temperature = &temp
	}

	data, err := json.Marshal(body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/chat", bytes.NewReader(data))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("cohere API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return CompletionResponse{}, fmt.Errorf("cohere API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result cohereResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return CompletionResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range result.Message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return CompletionResponse{}, fmt.Errorf("cohere returned no text content")
	}

	return CompletionResponse{
		Content:      text.String(),
		Model:        model,
		InputTokens:  int(result.Usage.Tokens.InputTokens),
		OutputTokens: int(result.Usage.Tokens.OutputTokens),
	}, nil
}

func (p *CohereProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	return completeAsStream(ctx, p, req), nil
}

func (p *CohereProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: defaultCohereModel, Name: "Command R+", MaxTokens: 128000, Description: "Default Sensei model"},
		{ID: "command-r-08-2024", Name: "Command R", MaxTokens: 128000, Description: "Cheaper chat model"},
	}
}

func (p *CohereProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models?page_size=1", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
