// Package notify tells the user that a history scan found leaks. The display
// itself is somebody else's job: notifiers here only hand the count on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/sjson"

	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/metrics"
)

// Notifier is signalled with the number of leaks found by a scan.
type Notifier interface {
	NotifyLeaks(ctx context.Context, count int) error
}

// Text renders the user-facing notification body.
func Text(count int) string {
	return fmt.Sprintf("Found %d potential privacy leak(s) in your chat history. Click to review.", count)
}

// Title is the notification heading.
const Title = "Privacy Guardian Alert"

// --- Log ------------------------------------------------------------------

// Log writes the notification to the log.
type Log struct {
	log *logger.Logger
}

// NewLog returns a Log notifier.
func NewLog(log *logger.Logger) *Log {
	if log == nil {
		log = logger.Discard()
	}
	return &Log{log: log}
}

func (n *Log) NotifyLeaks(_ context.Context, count int) error {
	n.log.Warnf("leaks", "%s: %s", Title, Text(count))
	return nil
}

// --- Webhook --------------------------------------------------------------

// Webhook POSTs a JSON notification to a URL, retrying transient failures.
type Webhook struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhook returns a Webhook for url with the given per-delivery timeout.
func NewWebhook(url string, timeout time.Duration, retries int) *Webhook {
	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{Timeout: timeout}
	c.RetryMax = retries
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.Logger = nil
	return &Webhook{url: url, client: c}
}

func (n *Webhook) NotifyLeaks(ctx context.Context, count int) error {
	body := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path string
		val  any
	}{
		{"title", Title},
		{"message", Text(count)},
		{"leaksFound", count},
		{"timestamp", time.Now().UTC().Format(time.RFC3339)},
	} {
		if body, err = sjson.SetBytes(body, kv.path, kv.val); err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, body)
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	resp.Body.Close() //nolint:errcheck // body unused
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver notification: status %d", resp.StatusCode)
	}
	return nil
}

// --- Gated ----------------------------------------------------------------

// FlagReader reads a persisted boolean setting.
type FlagReader interface {
	Flag(ctx context.Context, key string, def bool) (bool, error)
}

// Gated forwards to Next only while the notificationsEnabled setting is on.
type Gated struct {
	Flags   FlagReader
	Key     string
	Next    Notifier
	Metrics *metrics.Metrics
}

func (n *Gated) NotifyLeaks(ctx context.Context, count int) error {
	on, err := n.Flags.Flag(ctx, n.Key, true)
	if err != nil {
		return fmt.Errorf("read notification setting: %w", err)
	}
	if !on {
		return nil
	}
	if err := n.Next.NotifyLeaks(ctx, count); err != nil {
		return err
	}
	if n.Metrics != nil {
		n.Metrics.NotificationsSent.Add(1)
	}
	return nil
}

// --- Multi ----------------------------------------------------------------

// Multi fans a notification out to every notifier, joining their errors.
type Multi []Notifier

func (m Multi) NotifyLeaks(ctx context.Context, count int) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyLeaks(ctx, count); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
