// Package router carries typed requests from the page context to the
// privileged, network-capable context and brings the answers back.
//
// Every request kind has exactly one response kind. Requests travel over a
// channel as envelopes; Router.Call applies the per-action deadline once, so
// call sites never manage timeouts themselves.
package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"privacy-guardian/internal/pii"
)

// Action tags a request and its response on the wire.
type Action string

// Supported actions.
const (
	ActionDetect      Action = "detect"
	ActionAnonymize   Action = "anonymize"
	ActionScanHistory Action = "scanHistory"
	ActionPing        Action = "pingBackend"
)

// legacyDetect is the detect tag older page scripts send.
const legacyDetect = "checkPII"

// Request is one of DetectRequest, AnonymizeRequest, ScanHistoryRequest or
// PingRequest.
type Request interface {
	Action() Action
	isRequest()
}

// Response is one of DetectResponse, AnonymizeResponse, ScanHistoryResponse
// or PingResponse.
type Response interface {
	Action() Action
	isResponse()
}

type DetectRequest struct {
	Text string `json:"text"`
}

type AnonymizeRequest struct {
	Text string `json:"text"`
}

type ScanHistoryRequest struct {
	Messages  []pii.Message `json:"messages"`
	SourceURL string        `json:"url"`
}

type PingRequest struct{}

func (DetectRequest) Action() Action      { return ActionDetect }
func (AnonymizeRequest) Action() Action   { return ActionAnonymize }
func (ScanHistoryRequest) Action() Action { return ActionScanHistory }
func (PingRequest) Action() Action        { return ActionPing }

func (DetectRequest) isRequest()      {}
func (AnonymizeRequest) isRequest()   {}
func (ScanHistoryRequest) isRequest() {}
func (PingRequest) isRequest()        {}

type DetectResponse struct {
	pii.DetectionResult
}

type AnonymizeResponse struct {
	pii.AnonymizationResult
}

type ScanHistoryResponse struct {
	Success    bool   `json:"success"`
	LeaksFound int    `json:"leaksFound"`
	Error      string `json:"error,omitempty"`
}

type PingResponse struct {
	pii.PingResult
}

func (DetectResponse) Action() Action      { return ActionDetect }
func (AnonymizeResponse) Action() Action   { return ActionAnonymize }
func (ScanHistoryResponse) Action() Action { return ActionScanHistory }
func (PingResponse) Action() Action        { return ActionPing }

func (DetectResponse) isResponse()      {}
func (AnonymizeResponse) isResponse()   {}
func (ScanHistoryResponse) isResponse() {}
func (PingResponse) isResponse()        {}

// Empty returns the zero response for action, used when a call times out or
// the router is closed.
func Empty(action Action) Response {
	switch action {
	case ActionDetect:
		return DetectResponse{}
	case ActionAnonymize:
		return AnonymizeResponse{}
	case ActionScanHistory:
		return ScanHistoryResponse{}
	case ActionPing:
		return PingResponse{}
	}
	return nil
}

// ErrUnknownAction is returned by Decode for an unsupported action tag.
var ErrUnknownAction = errors.New("unknown action")

// Decode parses the JSON wire form {"action": "...", ...fields}.
func Decode(body []byte) (Request, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("request is not JSON")
	}
	tag := gjson.GetBytes(body, "action").String()

	var (
		req Request
		err error
	)
	switch Action(tag) {
	case ActionDetect, legacyDetect:
		var r DetectRequest
		err = json.Unmarshal(body, &r)
		req = r
	case ActionAnonymize:
		var r AnonymizeRequest
		err = json.Unmarshal(body, &r)
		req = r
	case ActionScanHistory:
		var r ScanHistoryRequest
		err = json.Unmarshal(body, &r)
		req = r
	case ActionPing:
		req = PingRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s request: %w", tag, err)
	}
	return req, nil
}

// Encode renders a response in its JSON wire form, tagged with its action.
func Encode(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(data, "action", string(resp.Action()))
}
