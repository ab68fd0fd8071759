package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  string
		want ErrorType
	}{
		{"insufficient_quota: you exceeded your current quota", ErrorQuota},
		{"status 429: rate limit reached", ErrorRate},
		{"request timeout after 60s", ErrorTransient},
		{"status 503: service unavailable", ErrorTransient},
		{"prompt is too long for model", ErrorContext},
		{"status 401: invalid api key", ErrorPermanent},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ClassifyError(errors.New(c.err)), c.err)
	}
	require.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(ErrorRate))
	require.True(t, Retryable(ErrorTransient))
	require.False(t, Retryable(ErrorQuota))
	require.False(t, Retryable(ErrorPermanent))
	require.False(t, Retryable(ErrorContext))
}
