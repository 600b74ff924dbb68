// internal/analysis/openai.go
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/javajoker/venuetrust/internal/retry"
)

const OpenAIProvider = "openai"

// ProviderConfig configures a hosted model provider.
type ProviderConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Version           string
	RequestsPerSecond float64
	Retry             *retry.Config
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// OpenAIAnalyzer scores reviews with an OpenAI-compatible chat endpoint.
type OpenAIAnalyzer struct {
	client  *openai.Client
	cfg     ProviderConfig
	limiter *rate.Limiter
}

func NewOpenAIAnalyzer(cfg ProviderConfig) *OpenAIAnalyzer {
	a := &OpenAIAnalyzer{cfg: cfg, limiter: newLimiter(cfg.RequestsPerSecond)}
	if cfg.Model == "" {
		a.cfg.Model = openai.GPT4oMini
	}
	if cfg.Version == "" {
		a.cfg.Version = "openai-v1"
	}
	if cfg.APIKey == "" {
		return a
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	a.client = openai.NewClientWithConfig(clientConfig)
	return a
}

func (a *OpenAIAnalyzer) Name() string { return OpenAIProvider }

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, in Input) (*Result, error) {
	if a.client == nil {
		return nil, ErrNotConfigured
	}

	content, err := retry.DoWithResult(ctx, a.cfg.Retry, func() (string, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", err
		}
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: a.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildPrompt(in)},
			},
			Temperature: 0,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai analyze: %w", err)
	}

	result, err := parseResponse(content)
	if err != nil {
		return nil, fmt.Errorf("openai analyze: %w", err)
	}
	result.Provider = OpenAIProvider
	result.Model = a.cfg.Model
	result.Version = a.cfg.Version
	return result, nil
}

// classifyOpenAIError maps client errors onto retry.StatusError so transient
// failures are retried.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%w: %v", &retry.StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Errorf("%w: %v", &retry.StatusError{StatusCode: reqErr.HTTPStatusCode}, err)
	}
	return err
}
