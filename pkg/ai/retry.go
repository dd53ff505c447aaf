package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/mledur/quill/pkg/config"
	"github.com/mledur/quill/pkg/logging"
)

// RetryConfig configures the retry middleware
type RetryConfig struct {
	Enabled        bool
	MaxRetries     int
	InitialBackoff time.Duration
}

// GetRetryConfigFromEnv creates retry config from environment variables
func GetRetryConfigFromEnv(configManager config.Manager) RetryConfig {
	return RetryConfig{
		Enabled:        configManager.GetBoolWithDefault("QUILL_RETRY_ENABLED", true),
		MaxRetries:     configManager.GetIntWithDefault("QUILL_RETRY_MAX_RETRIES", 3),
		InitialBackoff: configManager.GetDurationWithDefault("QUILL_RETRY_INITIAL_BACKOFF", time.Second),
	}
}

// RetryMiddleware wraps a Gen implementation with exponential backoff.
// CountTokens and GetStatus pass through untouched.
type RetryMiddleware struct {
	underlying     Gen
	maxRetries     int
	initialBackoff time.Duration
	logger         logging.Logger
}

// NewRetryMiddleware creates a new RetryMiddleware
func NewRetryMiddleware(underlying Gen, config RetryConfig) *RetryMiddleware {
	return &RetryMiddleware{
		underlying:     underlying,
		maxRetries:     config.MaxRetries,
		initialBackoff: config.InitialBackoff,
		logger:         logging.NewComponentLogger("retry"),
	}
}

// GenerateContent implements the Gen interface with retry logic
func (r *RetryMiddleware) GenerateContent(ctx context.Context, p Prompt, attrs ...Attr) (string, error) {
	var lastErr error

	backoff := r.initialBackoff
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		response, err := r.underlying.GenerateContent(ctx, p, attrs...)
		if err == nil {
			return response, nil
		}
		lastErr = err

		r.logger.Warn("generation attempt failed",
			"attempt", attempt,
			"error", err,
			"backoff", backoff,
		)

		// No point sleeping once the last attempt has failed.
		if attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", fmt.Errorf("failed to generate content after %d retries: %w", r.maxRetries, lastErr)
}

// CountTokens delegates to the underlying client
func (r *RetryMiddleware) CountTokens(ctx context.Context, p Prompt, attrs ...Attr) (*TokenCount, error) {
	return r.underlying.CountTokens(ctx, p, attrs...)
}

// GetStatus delegates to the underlying client
func (r *RetryMiddleware) GetStatus() *Status {
	return r.underlying.GetStatus()
}
