// internal/analysis/anthropic.go
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"golang.org/x/time/rate"

	"github.com/javajoker/venuetrust/internal/retry"
)

const (
	AnthropicProvider     = "anthropic"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	anthropicMaxTokens    = 600
)

// AnthropicAnalyzer scores reviews with the Anthropic Messages API.
type AnthropicAnalyzer struct {
	client  *anthropic.Client
	cfg     ProviderConfig
	limiter *rate.Limiter
}

func NewAnthropicAnalyzer(cfg ProviderConfig) *AnthropicAnalyzer {
	a := &AnthropicAnalyzer{cfg: cfg, limiter: newLimiter(cfg.RequestsPerSecond)}
	if cfg.Model == "" {
		a.cfg.Model = defaultAnthropicModel
	}
	if cfg.Version == "" {
		a.cfg.Version = "anthropic-v1"
	}
	if cfg.APIKey == "" {
		return a
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	a.client = anthropic.NewClient(cfg.APIKey, opts...)
	return a
}

func (a *AnthropicAnalyzer) Name() string { return AnthropicProvider }

func (a *AnthropicAnalyzer) Analyze(ctx context.Context, in Input) (*Result, error) {
	if a.client == nil {
		return nil, ErrNotConfigured
	}

	prompt := buildPrompt(in)
	content, err := retry.DoWithResult(ctx, a.cfg.Retry, func() (string, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", err
		}
		resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:     anthropic.Model(a.cfg.Model),
			System:    systemPrompt,
			MaxTokens: anthropicMaxTokens,
			Messages: []anthropic.Message{
				{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
					{Type: "text", Text: &prompt},
				}},
			},
		})
		if err != nil {
			return "", classifyAnthropicError(err)
		}
		text := extractText(resp)
		if strings.TrimSpace(text) == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic analyze: %w", err)
	}

	result, err := parseResponse(content)
	if err != nil {
		return nil, fmt.Errorf("anthropic analyze: %w", err)
	}
	result.Provider = AnthropicProvider
	result.Model = a.cfg.Model
	result.Version = a.cfg.Version
	return result, nil
}

func extractText(resp anthropic.MessagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return sb.String()
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	status := 0
	switch string(apiErr.Type) {
	case "rate_limit_error":
		status = http.StatusTooManyRequests
	case "overloaded_error":
		status = 529
	case "api_error":
		status = http.StatusInternalServerError
	}
	if status == 0 {
		return err
	}
	return fmt.Errorf("%w: %v", &retry.StatusError{StatusCode: status, Body: apiErr.Message}, err)
}
