package fetcher

import (
	"log/slog"
	"net/http"
	"time"

	"resty.dev/v3"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
)

// ClientOptions configures a resty client for one upstream.
type ClientOptions struct {
	BaseURL   string
	UserAgent string
	Accept    string
	Timeout   time.Duration
	// RetryCount enables transport-level retries with exponential backoff.
	// Zero leaves retrying to the caller.
	RetryCount int
	// Logger receives retry logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewHTTPClient creates a resty client with the given user agent and, when
// RetryCount is positive, retry logic with exponential backoff.
func NewHTTPClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	accept := opts.Accept
	if accept == "" {
		accept = "application/json"
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", accept)

	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	if opts.RetryCount > 0 {
		client.
			SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(defaultRetryWaitTime).
			SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
			AddRetryConditions(retryCondition).
			AddRetryHooks(retryHook(logger))
	}

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	default:
		return false
	}
}

// retryHook returns a hook that logs retry attempts to logger
func retryHook(logger *slog.Logger) resty.RetryHookFunc {
	return func(r *resty.Response, err error) {
		if err != nil {
			logger.Debug("retrying request due to error",
				"url", r.Request.URL,
				"attempt", r.Request.Attempt,
				"error", err.Error())
			return
		}

		logger.Debug("retrying request due to status code",
			"url", r.Request.URL,
			"attempt", r.Request.Attempt,
			"status_code", r.StatusCode())
	}
}
