package router

import (
	"context"

	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/pii"
)

// Caller sends one request and waits for its response.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// PageClient is the page context's handle on the privileged side. Its
// Detect and Anonymize keep the classifier's degrade contract when the
// router itself fails: detection falls back to the local check and
// anonymization degrades to a no-op.
type PageClient struct {
	caller Caller
	log    *logger.Logger
}

// NewPageClient wraps caller.
func NewPageClient(caller Caller, log *logger.Logger) *PageClient {
	if log == nil {
		log = logger.Discard()
	}
	return &PageClient{caller: caller, log: log}
}

func (c *PageClient) Detect(ctx context.Context, text string) pii.DetectionResult {
	resp, err := c.caller.Call(ctx, DetectRequest{Text: text})
	if r, ok := resp.(DetectResponse); ok && err == nil {
		return r.DetectionResult
	}
	c.log.Warnf("detect", "no answer from background, using local detection: %v", err)
	return pii.Fallback(text)
}

func (c *PageClient) Anonymize(ctx context.Context, text string) pii.AnonymizationResult {
	resp, err := c.caller.Call(ctx, AnonymizeRequest{Text: text})
	if r, ok := resp.(AnonymizeResponse); ok && err == nil {
		return r.AnonymizationResult
	}
	c.log.Warnf("anonymize", "no answer from background: %v", err)
	return pii.Degraded(text, err)
}

// ScanHistory asks the privileged side to scan messages.
func (c *PageClient) ScanHistory(ctx context.Context, messages []pii.Message, sourceURL string) ScanHistoryResponse {
	resp, err := c.caller.Call(ctx, ScanHistoryRequest{Messages: messages, SourceURL: sourceURL})
	if r, ok := resp.(ScanHistoryResponse); ok && err == nil {
		return r
	}
	c.log.Warnf("scan", "history scan not completed: %v", err)
	out := ScanHistoryResponse{}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// Ping asks the privileged side whether the classifier is reachable.
func (c *PageClient) Ping(ctx context.Context) pii.PingResult {
	resp, err := c.caller.Call(ctx, PingRequest{})
	if r, ok := resp.(PingResponse); ok && err == nil {
		return r.PingResult
	}
	out := pii.PingResult{}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
