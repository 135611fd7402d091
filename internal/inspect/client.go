// Package inspect implements the inspection-engine call contract over
// HTTP. The engine receives the serialized request map and answers with a
// verdict document, or with a list of diagnostic strings on failure.
package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/curiefense/curieproxy-go/internal/core/ports"
)

// Client calls the inspection engine once per request. There are no
// retries: a failed call is a terminal, non-fatal condition for that
// request and surfaces as diagnostics.
type Client struct {
	url    string
	client *http.Client
	tracer trace.Tracer
}

// NewClient creates an engine client. The timeout bounds the single round
// trip; expiry is reported as one more diagnostic string.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		tracer: otel.Tracer("curieproxy/inspect"),
	}
}

// engineError is the body shape the engine uses for failure responses.
type engineError struct {
	Errors []string `json:"errors"`
}

// Inspect posts the payload and returns either the verdict document or a
// non-empty diagnostic list, never both.
func (c *Client) Inspect(ctx context.Context, payload []byte, capability ports.Capability) ([]byte, []string) {
	ctx, span := c.tracer.Start(ctx, "engine.inspect")
	defer span.End()
	span.SetAttributes(attribute.Int("payload.bytes", len(payload)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, []string{fmt.Sprintf("create engine request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if capability != nil && capability.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+capability.Token())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Covers transport faults and the client timeout.
		return nil, []string{fmt.Sprintf("engine call failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, []string{fmt.Sprintf("read engine response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ee engineError
		if err := json.Unmarshal(body, &ee); err == nil && len(ee.Errors) > 0 {
			return nil, ee.Errors
		}
		return nil, []string{fmt.Sprintf("engine returned status %d: %s", resp.StatusCode, string(body))}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, []string{"engine returned an empty verdict"}
	}
	return body, nil
}

// Ensure Client implements the call contract.
var _ ports.Inspector = (*Client)(nil)
