package fetcher

import (
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"
)

const (
	// Default retry configuration
	DefaultRetryCount       = 3
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second

	defaultTimeout = 30 * time.Second
)

// ClientOptions configures NewHTTPClient
type ClientOptions struct {
	// RetryCount is the number of retries on retryable failures. Zero disables retries.
	RetryCount int
	// Timeout bounds a single attempt. Zero uses the default.
	Timeout time.Duration
	// Accept is sent as the Accept header. Empty means application/json.
	Accept string
	Log    logrus.FieldLogger
}

// NewHTTPClient creates a new HTTP client with retry logic and exponential backoff
func NewHTTPClient(baseURL string, opts ClientOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Accept == "" {
		opts.Accept = "application/json"
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", opts.Accept)

	if opts.RetryCount > 0 {
		client.
			SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(defaultRetryWaitTime).
			SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
			AddRetryConditions(retryCondition).
			AddRetryHooks(retryHook(log))
	}

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == 429, code == 408:
		return true
	default:
		return false
	}
}

// retryHook logs retry attempts for observability
func retryHook(log logrus.FieldLogger) func(*resty.Response, error) {
	return func(r *resty.Response, err error) {
		entry := log.WithFields(logrus.Fields{
			"url":     r.Request.URL,
			"attempt": r.Request.Attempt,
		})
		if err != nil {
			entry.WithError(err).Debug("retrying request due to error")
			return
		}
		entry.WithField("status_code", r.StatusCode()).Debug("retrying request due to status code")
	}
}
