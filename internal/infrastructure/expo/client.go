// Package expo is a client for the Expo push gateway.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-push-dispatch/internal/domain"
)

// maxResponseBytes bounds how much of a gateway response is read.
const maxResponseBytes = 4 << 20

// Client sends message batches to the gateway and returns the tickets.
type Client struct {
	httpClient  *http.Client
	url         string
	accessToken string
}

// New creates a gateway client. accessToken may be empty when the Expo
// project does not enforce push security.
func New(url, accessToken string, timeout time.Duration) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		url:         url,
		accessToken: accessToken,
	}
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Data   []domain.Ticket `json:"data"`
	Errors []gatewayError  `json:"errors"`
}

// Send posts messages as one JSON array. The returned tickets are aligned
// with the request order. A non-2xx status, an unreadable body, or a request
// level error in the envelope is returned as an error.
func (c *Client) Send(ctx context.Context, messages []domain.PushMessage) ([]domain.Ticket, error) {
	body, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal push messages: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send push request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("push gateway status=%d body=%s", resp.StatusCode, truncate(raw, 256))
	}
	return decodeTickets(raw)
}

// decodeTickets accepts a bare ticket array or the {"data": [...]} envelope.
func decodeTickets(raw []byte) ([]domain.Ticket, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tickets []domain.Ticket
		if err := json.Unmarshal(trimmed, &tickets); err != nil {
			return nil, fmt.Errorf("decode push tickets: %w", err)
		}
		return tickets, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if len(env.Errors) > 0 && len(env.Data) == 0 {
		return nil, fmt.Errorf("push gateway error %s: %s", env.Errors[0].Code, env.Errors[0].Message)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("push response has no tickets")
	}
	return env.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
