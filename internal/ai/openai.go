// Package ai calls an OpenAI-compatible chat completions endpoint with
// masked document text.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

// DefaultBaseURL is the OpenAI chat completions endpoint
const DefaultBaseURL = "https://api.openai.com/v1/chat/completions"

// Completer sends a prompt to a model and returns its text response
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Prompt is one chat exchange
type Prompt struct {
	System string
	User   string
}

// Config contains provider settings
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// OpenAI is a Completer for OpenAI-compatible APIs
type OpenAI struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	maxRetries  int
	backoff     time.Duration
	client      *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewOpenAI creates a provider. An empty API key is rejected since every
// request would fail.
func NewOpenAI(config Config, logger *zap.Logger) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4000
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1)
	}

	return &OpenAI{
		apiKey:      config.APIKey,
		model:       config.Model,
		baseURL:     config.BaseURL,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		maxRetries:  config.MaxRetries,
		backoff:     time.Second,
		client:      &http.Client{Timeout: config.Timeout},
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Model returns the configured model name
func (o *OpenAI) Model() string { return o.model }

// Complete sends the prompt and returns the first choice. Every failure is
// wrapped with privacy.ErrExternalCall.
func (o *OpenAI) Complete(ctx context.Context, prompt Prompt) (string, error) {
	body := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens: o.maxTokens,
	}
	if o.temperature > 0 {
		body.Temperature = &o.temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	start := time.Now()
	var content string
	err = retryWithBackoff(ctx, o.maxRetries, o.backoff, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

		httpResp, err := o.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests:
			return &rateLimitError{}
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return &authError{message: string(respBody)}
		case httpResp.StatusCode >= 500:
			return &serverError{statusCode: httpResp.StatusCode, body: string(respBody)}
		case httpResp.StatusCode != http.StatusOK:
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
		}

		var result openaiResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if len(result.Choices) == 0 {
			return fmt.Errorf("no response choices")
		}
		if result.Choices[0].Message.Content == "" {
			return fmt.Errorf("empty text content in API response")
		}

		content = result.Choices[0].Message.Content
		o.logger.Debug("AI completion received",
			zap.String("model", o.model),
			zap.Int("tokens_used", result.Usage.TotalTokens),
			zap.Duration("duration", time.Since(start)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", privacy.ErrExternalCall, err)
	}
	return content, nil
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiUsage struct {
	TotalTokens int `json:"total_tokens"`
}
