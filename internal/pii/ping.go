package pii

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
)

// PingResult reports classifier reachability.
type PingResult struct {
	Online  bool   `json:"online"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ping checks that the classifier answers on its root endpoint within the
// ping deadline.
func (c *Client) Ping(ctx context.Context) PingResult {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathPing, nil)
	if err != nil {
		return PingResult{Error: err.Error()}
	}
	resp, err := c.http.Do(req) // #nosec G107 -- URL from trusted config
	if err != nil {
		c.log.Warnf("ping", "classifier unreachable: %v", err)
		return PingResult{Error: err.Error()}
	}
	body, err := readBody(resp)
	if err != nil {
		c.log.Warnf("ping", "classifier unhealthy: %v", err)
		return PingResult{Error: err.Error()}
	}
	return PingResult{Online: true, Message: gjson.GetBytes(body, "message").String()}
}
