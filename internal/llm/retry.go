package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"
)

type retrying struct {
	next     Completer
	attempts int
	backoff  time.Duration
}

// WithRetry makes up to attempts completion calls with exponential backoff.
// Only transient failures are retried: timeouts, network errors, rate limits
// and 5xx responses.
func WithRetry(c Completer, attempts int, backoff time.Duration) Completer {
	if attempts < 1 {
		attempts = 1
	}
	return &retrying{next: c, attempts: attempts, backoff: backoff}
}

func (r *retrying) Complete(ctx context.Context, system, user string, cfg CompletionConfig) (string, error) {
	var lastErr error
	wait := r.backoff
	for i := 0; i < r.attempts; i++ {
		out, err := r.next.Complete(ctx, system, user, cfg)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(ctx, err) || i == r.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return "", lastErr
}

var statusCode = regexp.MustCompile(`status code:? (\d{3})`)

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	// A per-attempt deadline from WithTimeout, not the caller's.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.Code)
	}
	var llmErr *llms.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Code {
		case llms.ErrCodeRateLimit, llms.ErrCodeTimeout, llms.ErrCodeProviderUnavailable:
			return true
		case llms.ErrCodeUnknown:
		default:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if m := statusCode.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return transientStatus(code)
	}
	return false
}

func transientStatus(code int) bool {
	return code == 429 || code >= 500
}
