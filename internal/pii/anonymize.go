package pii

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Anonymize asks the classifier for a redacted version of text. The call is
// bounded by the general request deadline, retries included. On any failure
// it returns Degraded(text, err): callers can treat failure and "nothing
// found" alike, or branch on Failed().
func (c *Client) Anonymize(ctx context.Context, text string) AnonymizationResult {
	start := time.Now()
	res, err := c.anonymizeRemote(ctx, text)
	if c.metrics != nil {
		c.metrics.AnonymizeCalls.Add(1)
		c.metrics.RecordAnonLatency(time.Since(start))
	}
	if err != nil {
		c.log.Warnf("anonymize", "classifier unavailable, no redaction offered: %v", err)
		if c.metrics != nil {
			c.metrics.AnonymizeFailures.Add(1)
		}
		return Degraded(text, err)
	}
	if c.metrics != nil {
		c.metrics.SpansReported.Add(int64(len(res.Spans)))
	}
	c.log.Debugf("anonymize", "classifier reported %d span(s)", len(res.Spans))
	return res
}

func (c *Client) anonymizeRemote(ctx context.Context, text string) (AnonymizationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	payload, err := sjson.SetBytes([]byte(`{}`), "text", text)
	if err != nil {
		return AnonymizationResult{}, fmt.Errorf("encode anonymize request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathAnonymize, payload)
	if err != nil {
		return AnonymizationResult{}, fmt.Errorf("create anonymize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.retry.Do(req)
	if err != nil {
		return AnonymizationResult{}, err
	}
	body, err := readBody(resp)
	if err != nil {
		return AnonymizationResult{}, err
	}
	return parseAnonymization(text, body)
}

// parseAnonymization reads the classifier's anonymize response. A missing or
// empty anonymized_text keeps the original text.
func parseAnonymization(text string, body []byte) (AnonymizationResult, error) {
	if !gjson.ValidBytes(body) {
		return AnonymizationResult{}, errors.New("anonymize response is not JSON")
	}
	doc := gjson.ParseBytes(body)

	res := AnonymizationResult{
		RedactedText: text,
		Spans:        []RedactionSpan{},
		Message:      doc.Get("message").String(),
	}
	if redacted := doc.Get("anonymized_text").String(); redacted != "" {
		res.RedactedText = redacted
	}
	doc.Get("replacements").ForEach(func(_, r gjson.Result) bool {
		res.Spans = append(res.Spans, RedactionSpan{
			Original:    r.Get("original").String(),
			Replacement: r.Get("replacement").String(),
		})
		return true
	})
	return res, nil
}
