package pii

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
)

// Classifier endpoints, relative to the backend base URL.
const (
	pathDetect    = "/detect_pii"
	pathAnonymize = "/smart_anonymize"
	pathPing      = "/"
)

const maxResponseBytes = 1 << 20 // 1 MiB

// Options configures a Client. Zero durations fall back to the defaults below.
type Options struct {
	BaseURL        string
	DetectTimeout  time.Duration // interactive path, kept short
	RequestTimeout time.Duration // general deadline
	PingTimeout    time.Duration
	Retries        int // extra anonymize attempts within RequestTimeout

	HTTPClient *http.Client     // nil = dedicated client
	Logger     *logger.Logger   // nil = discard
	Metrics    *metrics.Metrics // nil = no metrics
}

// Client is the remote classifier client. Detect and Anonymize never return
// errors: every failure is absorbed into the local fallback or a degraded
// result. It is safe for concurrent use.
type Client struct {
	baseURL        string
	detectTimeout  time.Duration
	requestTimeout time.Duration
	pingTimeout    time.Duration

	http    *http.Client
	retry   *retryablehttp.Client
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewClient creates a Client for the classifier at opts.BaseURL.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		detectTimeout:  orDefault(opts.DetectTimeout, 3*time.Second),
		requestTimeout: orDefault(opts.RequestTimeout, 15*time.Second),
		pingTimeout:    orDefault(opts.PingTimeout, 3*time.Second),
		http:           opts.HTTPClient,
		log:            opts.Logger,
		metrics:        opts.Metrics,
	}
	if c.http == nil {
		// Deadlines come from per-call contexts; no client-wide timeout.
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = logger.Discard()
	}

	c.retry = retryablehttp.NewClient()
	c.retry.HTTPClient = c.http
	c.retry.RetryMax = opts.Retries
	c.retry.RetryWaitMin = 100 * time.Millisecond
	c.retry.RetryWaitMax = time.Second
	c.retry.Logger = nil // failures are logged once, by the caller
	return c
}

// BaseURL returns the classifier base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// readBody drains a classifier response, rejecting non-2xx statuses.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("classifier status %d", resp.StatusCode)
	}
	return body, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
