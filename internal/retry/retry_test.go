package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), fastPolicy(), func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	base := errors.New("still down")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(context.Context, int) (int, error) {
		calls++
		return 0, base
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "operation failed after 3 attempts: still down", err.Error())

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	base := errors.New("bad request")
	calls := 0
	err := Run(context.Background(), fastPolicy(), func(context.Context, int) error {
		calls++
		return Permanent(base)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, base, err)
	assert.False(t, IsPermanent(err))
}

func TestDo_RetryableClassifier(t *testing.T) {
	p := fastPolicy()
	p.Retryable = NonRetryableCodes("InvalidRequestException", "AccessDeniedException")

	calls := 0
	err := Run(context.Background(), p, func(context.Context, int) error {
		calls++
		return errors.New("AccessDeniedException: no model access")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Run(context.Background(), p, func(context.Context, int) error {
		calls++
		return errors.New("ThrottlingException")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

type codedErr struct{ code string }

func (e codedErr) Error() string     { return "provider failure" }
func (e codedErr) ErrorCode() string { return e.code }

func TestNonRetryableCodes_UsesErrorCode(t *testing.T) {
	classify := NonRetryableCodes("InvalidRequestException")
	assert.False(t, classify(codedErr{code: "invalidrequestexception"}))
	assert.True(t, classify(codedErr{code: "ServiceUnavailable"}))
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, p, func(context.Context, int) error {
			calls++
			return errors.New("boom")
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestDelay_ExponentialAndCapped(t *testing.T) {
	p := Default()
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 30*time.Second, p.Delay(10))
}

func TestDelay_Jitter(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, Factor: 2, Jitter: 0.25}
	for i := 0; i < 50; i++ {
		d := p.Delay(0)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestOnRetryCallback(t *testing.T) {
	p := fastPolicy()
	var seen []int
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) }
	_ = Run(context.Background(), p, func(context.Context, int) error { return errors.New("x") })
	assert.Equal(t, []int{0, 1}, seen)
}
