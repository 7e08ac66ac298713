package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/bme-companion/pkg/logging"
)

const (
	defaultRetryAttempts = 2
	defaultRetryDelay    = 300 * time.Millisecond
	defaultRetryFactor   = 2.0
)

// RetryConfig controls exponential backoff for transient provider failures.
// Retries is the number of extra attempts after the first call.
type RetryConfig struct {
	Retries   int
	BaseDelay time.Duration
	Factor    float64
	// ShouldRetry filters errors worth retrying. Nil retries everything
	// except context cancellation.
	ShouldRetry func(error) bool
}

// RetryLLMClient retries a wrapped client with exponential backoff.
type RetryLLMClient struct {
	next   LLMClient
	cfg    RetryConfig
	logger *logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryLLMClient wraps next with retries. Zero config fields use defaults.
func NewRetryLLMClient(next LLMClient, cfg RetryConfig, logger *logging.Logger) *RetryLLMClient {
	if next == nil {
		panic("conversation: retry llm client requires a wrapped client")
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	} else if cfg.Retries == 0 {
		cfg.Retries = defaultRetryAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultRetryDelay
	}
	if cfg.Factor < 1 {
		cfg.Factor = defaultRetryFactor
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetryLLMClient{
		next:   next,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Complete calls the wrapped client until it succeeds, the error is not
// retryable, or the retry budget is spent. The last error is returned.
func (c *RetryLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	delay := c.cfg.BaseDelay
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		resp, err := c.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == c.cfg.Retries || !c.retryable(err) {
			break
		}
		c.logger.Warn("llm call failed, backing off",
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return LLMResponse{}, lastErr
		}
		delay = time.Duration(float64(delay) * c.cfg.Factor)
	}
	return LLMResponse{}, lastErr
}

func (c *RetryLLMClient) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c.cfg.ShouldRetry != nil {
		return c.cfg.ShouldRetry(err)
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
