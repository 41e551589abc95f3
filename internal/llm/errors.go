package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ProviderError is returned when a model provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int    // HTTP-like status code (401, 429, 500, etc.)
	Type     string // provider error type, e.g. "rate_limit_error"
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrorCode returns the provider's error type, or the status code when
// the provider did not name one.
func (e *ProviderError) ErrorCode() string {
	if e.Type != "" {
		return e.Type
	}
	if e.Code > 0 {
		return strconv.Itoa(e.Code)
	}
	return ""
}

// UnsupportedProviderError is returned for provider names no adapter handles.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("Unsupported provider: %s. Supported providers are 'anthropic', 'google' and 'openai'.", e.Provider)
}

// ErrUsageLimitExceeded is returned when a response exceeds the configured
// token limit.
var ErrUsageLimitExceeded = errors.New("usage limit exceeded")

// UsageLimits caps token consumption for a single run.
type UsageLimits struct {
	ResponseTokensLimit int
}

// Check returns ErrUsageLimitExceeded if u breaks a limit.
func (l UsageLimits) Check(u Usage) error {
	if l.ResponseTokensLimit > 0 && u.OutputTokens > l.ResponseTokensLimit {
		return fmt.Errorf("%w: response_tokens_limit of %d (got %d)", ErrUsageLimitExceeded, l.ResponseTokensLimit, u.OutputTokens)
	}
	return nil
}

// IsRetryable reports whether err is worth retrying against the same or
// another provider: rate limits, overload and server errors.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrUsageLimitExceeded) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 408, 429, 500, 502, 503, 504, 529:
			return true
		case 400, 401, 403, 404, 422:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection reset")
}

// ShouldFailover reports whether another provider might succeed where this
// one failed. Auth failures count because the next provider has its own key.
func ShouldFailover(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) && (provErr.Code == 401 || provErr.Code == 403) {
		return true
	}
	return IsRetryable(err)
}
