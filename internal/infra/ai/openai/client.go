package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	domai "github.com/bryanwahyu/solidity-audit/internal/domain/ai"
)

const defaultModel = "gpt-4"

// Options for the completion client. BaseURL allows OpenAI-compatible
// endpoints; zero values fall back to safe defaults.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxAttempts int           // total attempts including the first
	CallTimeout time.Duration // per-attempt bound
	RetryBase   time.Duration // initial backoff interval
}

type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxAttempts int
	callTimeout time.Duration
	retryBase   time.Duration
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing api key", domai.ErrConfiguration)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: opts.Temperature,
		maxAttempts: opts.MaxAttempts,
		callTimeout: opts.CallTimeout,
		retryBase:   opts.RetryBase,
	}, nil
}

// Analyze sends the composed prompt and returns the raw completion text.
// Transient failures (network, 429, 5xx) retry with bounded exponential
// backoff; auth/config failures abort immediately. Retry exhaustion wraps
// the last error in ErrAnalysisFailed instead of leaking transport detail.
func (c *Client) Analyze(ctx context.Context, req domai.Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(c.model, "o1") || strings.HasPrefix(c.model, "o3") || strings.HasPrefix(c.model, "o4") || strings.HasPrefix(c.model, "gpt-5") {
		chatReq.MaxCompletionTokens = req.MaxTokens
	} else {
		chatReq.MaxTokens = req.MaxTokens
	}

	var out string
	attempt := func() error {
		cctx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(cctx, chatReq)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion has no choices")
		}
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxAttempts-1)), ctx)

	if err := backoff.Retry(attempt, policy); err != nil {
		if errors.Is(err, domai.ErrConfiguration) {
			return "", err
		}
		return "", fmt.Errorf("%w after %d attempts: %w", domai.ErrAnalysisFailed, c.maxAttempts, err)
	}
	return out, nil
}

// classify splits provider errors into retryable and permanent.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// network error / timeout — retryable
		return err
	}

	switch {
	case status == 401 || status == 403:
		return backoff.Permanent(fmt.Errorf("%w: %w", domai.ErrConfiguration, err))
	case status == 429:
		return fmt.Errorf("%w: %w", domai.ErrQuotaExceeded, err)
	case status >= 500:
		return err
	default:
		// other 4xx — request is malformed, retrying cannot help
		return backoff.Permanent(err)
	}
}
