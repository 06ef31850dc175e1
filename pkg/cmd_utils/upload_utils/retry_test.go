package upload_utils

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Manhosu/CineVision-sub004/internal/testutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "network", err: &PartUploadError{PartNumber: 1, Err: errors.New("connection reset")}, want: true},
		{name: "server error", err: &PartUploadError{PartNumber: 1, StatusCode: http.StatusInternalServerError}, want: true},
		{name: "throttled", err: &PartUploadError{PartNumber: 1, StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "request timeout", err: &PartUploadError{PartNumber: 1, StatusCode: http.StatusRequestTimeout}, want: true},
		{name: "forbidden", err: &PartUploadError{PartNumber: 1, StatusCode: http.StatusForbidden}, want: false},
		{name: "no etag", err: &PartUploadError{PartNumber: 1, StatusCode: http.StatusOK}, want: false},
		{name: "auth", err: &AuthError{Err: errors.New("expired")}, want: false},
		{name: "cancelled", err: errors.Wrap(context.Canceled, "put"), want: false},
		{name: "deadline", err: &PartUploadError{PartNumber: 1, Err: context.DeadlineExceeded}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	transient := &PartUploadError{PartNumber: 1, StatusCode: http.StatusServiceUnavailable}

	t.Run("zero retries runs once", func(t *testing.T) {
		var calls int
		err := RetryPolicy{}.Do(testutil.TestContext(t), func() error {
			calls++
			return transient
		}, nil)
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries up to the limit", func(t *testing.T) {
		var calls, notified int
		policy := RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
		err := policy.Do(testutil.TestContext(t), func() error {
			calls++
			return transient
		}, func(error, time.Duration) { notified++ })
		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, notified)
	})

	t.Run("permanent errors stop at once", func(t *testing.T) {
		var calls int
		rejected := &PartUploadError{PartNumber: 1, StatusCode: http.StatusForbidden}
		policy := RetryPolicy{MaxRetries: 5, InitialInterval: time.Millisecond}
		err := policy.Do(testutil.TestContext(t), func() error {
			calls++
			return rejected
		}, nil)
		assert.ErrorIs(t, err, rejected)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(testutil.TestContext(t))
		var calls int
		policy := RetryPolicy{MaxRetries: 100, InitialInterval: time.Millisecond}
		err := policy.Do(ctx, func() error {
			calls++
			if calls == 2 {
				cancel()
			}
			return transient
		}, nil)
		assert.Error(t, err)
		assert.LessOrEqual(t, calls, 3)
	})
}
