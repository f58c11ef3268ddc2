package router

import (
	"context"
	"fmt"

	"privacy-guardian/internal/pii"
	"privacy-guardian/internal/scan"
)

// Classifier is the privileged side's view of the remote classifier.
type Classifier interface {
	Detect(ctx context.Context, text string) pii.DetectionResult
	Anonymize(ctx context.Context, text string) pii.AnonymizationResult
	Ping(ctx context.Context) pii.PingResult
}

// Scanner runs history scans.
type Scanner interface {
	Scan(ctx context.Context, messages []pii.Message, sourceURL string) scan.Result
}

// Service is the Handler of the privileged context.
type Service struct {
	Classifier Classifier
	Scanner    Scanner
}

// Handle dispatches req to the classifier or the scanner.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	switch r := req.(type) {
	case DetectRequest:
		return DetectResponse{s.Classifier.Detect(ctx, r.Text)}, nil
	case AnonymizeRequest:
		return AnonymizeResponse{s.Classifier.Anonymize(ctx, r.Text)}, nil
	case ScanHistoryRequest:
		res := s.Scanner.Scan(ctx, r.Messages, r.SourceURL)
		return ScanHistoryResponse{Success: res.Success, LeaksFound: res.LeaksFound, Error: res.Error}, nil
	case PingRequest:
		return PingResponse{s.Classifier.Ping(ctx)}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownAction, req)
}
