package pii

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const fallbackMessage = "Backend unavailable, using local detection"

// Detect asks the classifier whether text contains PII. The call is bounded
// by the detect deadline; on timeout, transport failure or an unusable
// response it falls back to LocalCheck and tags the result accordingly.
func (c *Client) Detect(ctx context.Context, text string) DetectionResult {
	start := time.Now()
	hasPII, err := c.detectRemote(ctx, text)
	if c.metrics != nil {
		c.metrics.RecordDetectLatency(time.Since(start))
	}
	if err != nil {
		c.log.Warnf("detect", "classifier unavailable, using local detection: %v", err)
		res := Fallback(text)
		if c.metrics != nil {
			c.metrics.DetectFallback.Add(1)
			if res.HasPII {
				c.metrics.DetectPositive.Add(1)
			}
		}
		return res
	}
	if c.metrics != nil {
		c.metrics.DetectRemote.Add(1)
		if hasPII {
			c.metrics.DetectPositive.Add(1)
		}
	}
	c.log.Debugf("detect", "classifier verdict hasPII=%v", hasPII)
	return DetectionResult{HasPII: hasPII, Source: SourceRemote}
}

// Fallback runs the local heuristic check and tags the result as such.
func Fallback(text string) DetectionResult {
	return DetectionResult{
		HasPII:  LocalCheck(text),
		Source:  SourceLocalFallback,
		Message: fallbackMessage,
	}
}

func (c *Client) detectRemote(ctx context.Context, text string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.detectTimeout)
	defer cancel()

	form := url.Values{"text": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathDetect, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("create detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req) // #nosec G107 -- URL from trusted config
	if err != nil {
		return false, err
	}
	body, err := readBody(resp)
	if err != nil {
		return false, err
	}
	if !gjson.ValidBytes(body) {
		return false, errors.New("detect response is not JSON")
	}
	return gjson.GetBytes(body, "pii_detected").Bool(), nil
}
