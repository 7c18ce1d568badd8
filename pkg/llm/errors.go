package llm

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the chat completions endpoint.
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server-advertised wait, when present.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat completions failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("chat completions failed: HTTP %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed when repeated:
// request timeouts, rate limits and server-side failures.
func (e *APIError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// RetryDelay exposes RetryAfter to the retry policy.
func (e *APIError) RetryDelay() time.Duration { return e.RetryAfter }

func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
