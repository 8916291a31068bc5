package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/metrics"
	"github.com/ocr-eval/harness/pkg/circuitbreaker"
	"github.com/ocr-eval/harness/pkg/logger"
	"github.com/ocr-eval/harness/pkg/retry"
)

var ErrEmptyCompletion = errors.New("completion returned no choices")

// Completer is anything that can run one chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Client talks to one OpenAI-compatible endpoint. Gemini and Groq are
// reached the same way through their compatibility base URLs.
type Client struct {
	name        string
	client      *openai.Client
	timeout     time.Duration
	maxTokens   int
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxTokens  int
	HTTPClient *http.Client
	Retry      *retry.Config
	Breaker    *circuitbreaker.Config
}

type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(name string, cfg ClientConfig) *Client {
	oaConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oaConfig.HTTPClient = cfg.HTTPClient
	}

	breakerConfig := circuitbreaker.Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	}
	if cfg.Breaker != nil {
		breakerConfig = *cfg.Breaker
	}

	retryConfig := retry.Config{
		MaxAttempts:    4,
		InitialDelay:   time.Second,
		MaxDelay:       20 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}
	if cfg.Retry != nil {
		retryConfig = *cfg.Retry
	}
	retryConfig.Retryable = IsRetryable

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("provider", name),
		zap.String("base_url", oaConfig.BaseURL),
	)

	return &Client{
		name:        name,
		client:      openai.NewClientWithConfig(oaConfig),
		timeout:     timeout,
		maxTokens:   cfg.MaxTokens,
		cb:          circuitbreaker.NewCircuitBreaker("llm-"+name, breakerConfig),
		retryConfig: retryConfig,
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			resp, err := c.client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
				Model:       req.Model,
				Messages:    messages,
				Temperature: req.Temperature,
				MaxTokens:   maxTokens,
			})
			elapsed := time.Since(start).Seconds()

			if err != nil {
				metrics.LLMRequestDuration.WithLabelValues(c.name, "error").Observe(elapsed)
				return fmt.Errorf("failed to create completion: %w", err)
			}
			metrics.LLMRequestDuration.WithLabelValues(c.name, "ok").Observe(elapsed)

			if len(resp.Choices) == 0 {
				return ErrEmptyCompletion
			}

			metrics.LLMTokensUsed.WithLabelValues(req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))

			logger.Debug("LLM completion generated",
				zap.String("provider", c.name),
				zap.String("model", req.Model),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// IsRetryable reports whether a completion error is worth another attempt:
// rate limits, server errors and transport failures are, other API errors
// and cancellations are not.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode)
	}

	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
