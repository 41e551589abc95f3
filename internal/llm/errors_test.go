package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentdesk/internal/retry"
)

func TestProviderError(t *testing.T) {
	assert.Equal(t, "anthropic: 429 slow down", (&ProviderError{Provider: "anthropic", Code: 429, Message: "slow down"}).Error())
	assert.Equal(t, "google: boom", (&ProviderError{Provider: "google", Message: "boom"}).Error())

	cause := errors.New("root")
	wrapped := fmt.Errorf("calling: %w", &ProviderError{Provider: "openai", Message: "x", Err: cause})
	assert.ErrorIs(t, wrapped, cause)
}

func TestProviderError_ErrorCode(t *testing.T) {
	assert.Equal(t, "rate_limit_error", (&ProviderError{Type: "rate_limit_error", Code: 429}).ErrorCode())
	assert.Equal(t, "503", (&ProviderError{Code: 503}).ErrorCode())
	assert.Equal(t, "", (&ProviderError{}).ErrorCode())

	classify := retry.NonRetryableCodes("InvalidRequestException")
	assert.False(t, classify(&ProviderError{Provider: "bedrock", Type: "InvalidRequestException"}))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &ProviderError{Code: 429}, true},
		{"overloaded", &ProviderError{Code: 529}, true},
		{"server", &ProviderError{Code: 502}, true},
		{"bad request", &ProviderError{Code: 400, Message: "timeout in prompt"}, false},
		{"unauthorized", &ProviderError{Code: 401}, false},
		{"message overloaded", errors.New("model Overloaded"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"usage limit", fmt.Errorf("%w: x", ErrUsageLimitExceeded), false},
		{"other", errors.New("parse failure"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestShouldFailover(t *testing.T) {
	assert.True(t, ShouldFailover(&ProviderError{Code: 401}))
	assert.True(t, ShouldFailover(&ProviderError{Code: 503}))
	assert.False(t, ShouldFailover(&ProviderError{Code: 400}))
}

func TestUsageLimits(t *testing.T) {
	limits := UsageLimits{ResponseTokensLimit: 10}
	assert.NoError(t, limits.Check(Usage{OutputTokens: 10}))

	err := limits.Check(Usage{OutputTokens: 11})
	require.ErrorIs(t, err, ErrUsageLimitExceeded)
	assert.Contains(t, err.Error(), "response_tokens_limit of 10")

	assert.NoError(t, UsageLimits{}.Check(Usage{OutputTokens: 1e6}))
}

func TestCollect(t *testing.T) {
	ch := make(chan StreamEvent, 3)
	ch <- StreamEvent{Type: EventDelta, Content: "hel"}
	ch <- StreamEvent{Type: EventDelta, Content: "lo"}
	ch <- StreamEvent{Type: EventDone, Response: &CompletionResponse{Model: "m"}}
	close(ch)

	resp, err := Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "m", resp.Model)

	errCh := make(chan StreamEvent, 1)
	errCh <- StreamEvent{Type: EventError, Error: "broken pipe"}
	close(errCh)
	_, err = Collect(errCh)
	assert.EqualError(t, err, "stream: broken pipe")
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 1, OutputTokens: 2}
	u.Add(Usage{InputTokens: 3, OutputTokens: 4})
	assert.Equal(t, Usage{InputTokens: 4, OutputTokens: 6}, u)
}
