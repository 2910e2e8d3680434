package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const maxResponseBytes = 8 << 20

// HTTPGenerator posts requests to a JSON generation endpoint that answers
// with {success, content, error}.
type HTTPGenerator struct {
	endpoint string
	client   *http.Client
}

// NewHTTPGenerator constructs a generator for endpoint.
func NewHTTPGenerator(endpoint string, timeout time.Duration) (*HTTPGenerator, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("generation: empty endpoint")
	}
	return &HTTPGenerator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Generate posts req and decodes the service reply.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("generation: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("generation: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("generation: request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("generation: close response body failed")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("generation: read response: %w", err)
	}

	var out Response
	errDecode := json.Unmarshal(body, &out)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if errDecode == nil && strings.TrimSpace(out.Error) != "" {
			return Response{Success: false, Error: out.Error}, nil
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return Response{}, fmt.Errorf("generation: unexpected status %d", resp.StatusCode)
		}
		return Response{Success: false, Error: fmt.Sprintf("generation service rejected the request (status %d)", resp.StatusCode)}, nil
	}
	if errDecode != nil {
		return Response{}, fmt.Errorf("generation: decode response: %w", errDecode)
	}
	return out, nil
}
