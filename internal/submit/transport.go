package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Transport delivers a serialized document to the remote endpoint and returns
// the HTTP status code. The response body is not interpreted.
type Transport interface {
	Send(ctx context.Context, body []byte, signature string) (int, error)
}

// Encoder turns a document into its wire representation.
type Encoder interface {
	Encode(document any) ([]byte, error)
}

// JSONEncoder encodes documents with encoding/json.
type JSONEncoder struct{}

func (JSONEncoder) Encode(document any) ([]byte, error) {
	return json.Marshal(document)
}

// HTTPTransport posts documents to a fixed endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport creates a transport posting to endpoint. A nil client
// falls back to http.DefaultClient.
func NewHTTPTransport(endpoint string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{
		endpoint: endpoint,
		client:   client,
	}
}

// Send posts body with a bearer Authorization header built from signature.
func (t *HTTPTransport) Send(ctx context.Context, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signature)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request to %s failed: %w", t.endpoint, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Endpoint returns the URL documents are posted to.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}
