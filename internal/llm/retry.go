package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

// #region failure-class
// FailureClass groups provider errors by how they should be retried.
type FailureClass string

const (
	FailureNone      FailureClass = "none"
	FailureRateLimit FailureClass = "rate_limit"
	FailureServer    FailureClass = "server"
	FailureFatal     FailureClass = "fatal"
)

// statusInText matches the status forms the SDKs print when no typed
// error is available, e.g. genai's "Error 503, Message: ..." or
// "status code 502". Bare digits elsewhere in a message do not count.
var statusInText = regexp.MustCompile(`(?i)\b(?:error|status(?: code)?|http)[ :=]+(\d{3})\b`)

// Classify inspects a provider error. The OpenAI SDK's typed error gives
// the status directly; otherwise the status must appear in a recognised
// form in the error text.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if code := statusCode(err); code != 0 {
		switch {
		case code == 429:
			return FailureRateLimit
		case code >= 500:
			return FailureServer
		default:
			return FailureFatal
		}
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "rate limit"),
		strings.Contains(s, "too many requests"),
		strings.Contains(s, "resource_exhausted"):
		return FailureRateLimit
	case strings.Contains(s, "internal server error"),
		strings.Contains(s, "bad gateway"),
		strings.Contains(s, "server_error"),
		strings.Contains(s, "unavailable"):
		return FailureServer
	default:
		return FailureFatal
	}
}

// statusCode returns the HTTP status carried by err, or 0.
func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	if m := statusInText.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// #endregion failure-class

// #region policy
// RetryPolicy holds the wait schedule per failure class. The number of
// attempts is one more than the longer schedule.
type RetryPolicy struct {
	RateLimitWaits []time.Duration
	ServerWaits    []time.Duration
}

// DefaultRetryPolicy keeps well inside the reducer's 30s judge bound.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RateLimitWaits: []time.Duration{5 * time.Second, 10 * time.Second},
		ServerWaits:    []time.Duration{1 * time.Second, 3 * time.Second},
	}
}

// NoRetry disables retries.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// ShouldRetry returns whether to retry after the given number of failed
// attempts and how long to wait first.
func (p RetryPolicy) ShouldRetry(class FailureClass, failedAttempts int) (bool, time.Duration) {
	var waits []time.Duration
	switch class {
	case FailureRateLimit:
		waits = p.RateLimitWaits
	case FailureServer:
		waits = p.ServerWaits
	default:
		return false, 0
	}
	if failedAttempts < 1 || failedAttempts > len(waits) {
		return false, 0
	}
	return true, waits[failedAttempts-1]
}

// #endregion policy

// #region call-with-retry
// CallWithRetry runs call until it succeeds, fails with a non-retryable
// error, the policy gives up, or ctx ends.
func CallWithRetry(ctx context.Context, policy RetryPolicy, call func(context.Context) (string, error)) (string, error) {
	for attempt := 1; ; attempt++ {
		out, err := call(ctx)
		if err == nil {
			return out, nil
		}
		retry, wait := policy.ShouldRetry(Classify(err), attempt)
		if !retry {
			if attempt > 1 {
				return "", fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return "", err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// #endregion call-with-retry
