// Package providers implements the model backends behind the
// agent.Provider interface: Google Gemini, Anthropic and OpenAI.
// Exactly one is selected at startup from config; the engine never
// learns which.
package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stackmesh/shopagent/internal/agent"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	defaultMaxTokens  = 4096
)

// Config selects and parameterizes a backend. The API key is read from
// the backend's environment variable and is never defaulted: a missing
// key is a startup error, not a fallback.
type Config struct {
	Provider string
	Model    string
	APIKey   string
}

// New builds the configured backend. Supported names: google,
// anthropic, openai.
func New(ctx context.Context, cfg Config) (agent.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "google", "gemini":
		return NewGoogle(ctx, cfg)
	case "anthropic":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown model provider %q (expected google, anthropic or openai)", cfg.Provider)
	}
}

// KeyFromEnv resolves the API key for a provider name from its
// conventional environment variable.
func KeyFromEnv(provider string) (string, error) {
	var envVar string
	switch strings.ToLower(provider) {
	case "google", "gemini":
		envVar = "GOOGLE_API_KEY"
	case "anthropic":
		envVar = "ANTHROPIC_API_KEY"
	case "openai":
		envVar = "OPENAI_API_KEY"
	default:
		return "", fmt.Errorf("unknown model provider %q", provider)
	}
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("%s is not set; the %s provider requires it", envVar, provider)
	}
	return key, nil
}

// retryWithBackoff runs fn up to maxRetries+1 times with exponential
// backoff, retrying only while retryable reports true.
func retryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) || attempt == maxRetries {
			return lastErr
		}
		delay := baseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// isTransient classifies rate limits, 5xx responses and network drops
// as retryable.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "429", "too many requests", "resource exhausted", "quota",
		"500", "502", "503", "504", "internal server error", "bad gateway",
		"service unavailable", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
