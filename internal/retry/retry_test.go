package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tempErr struct{ temporary bool }

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return e.temporary }

func fastPolicy(attempts uint64) Policy {
	return Policy{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsed:      time.Second,
		MaxAttempts:     attempts,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var notified int
	got, err := Do(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}, func(error, time.Duration) { notified++ })

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, notified)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(2), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("down")
	}, nil)

	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestDo_PermanentErrorsAreNotRetried(t *testing.T) {
	sentinel := errors.New("bad request")

	tests := []struct {
		name string
		err  error
	}{
		{"permanent", Permanent(sentinel)},
		{"not temporary", tempErr{temporary: false}},
		{"canceled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			}, nil)
			assert.Error(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDo_PermanentIsUnwrapped(t *testing.T) {
	sentinel := errors.New("bad request")
	_, err := Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		return 0, Permanent(sentinel)
	}, nil)
	assert.ErrorIs(t, err, sentinel)
}

func TestDo_SingleAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), NoRetry(), func(context.Context) (int, error) {
		calls++
		return 0, tempErr{temporary: true}
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(errors.New("x")))
	assert.True(t, Retryable(tempErr{temporary: true}))
	assert.False(t, Retryable(tempErr{temporary: false}))
	assert.False(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(Permanent(errors.New("x"))))
}
