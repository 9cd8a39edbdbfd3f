// Package registrar manages did:web registrations through the DIF
// Universal Registrar REST API (create, update, deactivate).
package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dErrors "annuaire/pkg/domain-errors"
)

const defaultTimeout = 30 * time.Second

// State values carried in the registrar's didState response.
const (
	StateFinished = "finished"
	StateFailed   = "failed"
	StateAction   = "action"
)

// Response is the registrar's answer to a lifecycle request.
type Response struct {
	DIDState DIDState        `json:"didState"`
	Raw      json.RawMessage `json:"-"`
}

type DIDState struct {
	State       string          `json:"state"`
	DID         string          `json:"did"`
	Reason      string          `json:"reason,omitempty"`
	DIDDocument json.RawMessage `json:"didDocument,omitempty"`
}

// Client calls a Universal Registrar. An empty baseURL puts the client
// in stub mode, answering every request with a finished state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(c *Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a Client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create registers a new DID document.
func (c *Client) Create(ctx context.Context, didURI string, document any) (*Response, error) {
	if c.baseURL == "" {
		return c.stub(ctx, "create", didURI)
	}
	payload := map[string]any{
		"jobId":       nil,
		"options":     map[string]any{"network": "mainnet"},
		"secret":      map[string]any{},
		"didDocument": document,
	}
	return c.post(ctx, "create", payload)
}

// Update replaces the registered DID document.
func (c *Client) Update(ctx context.Context, didURI string, document any) (*Response, error) {
	if c.baseURL == "" {
		return c.stub(ctx, "update", didURI)
	}
	payload := map[string]any{
		"jobId":                nil,
		"did":                  didURI,
		"options":              map[string]any{},
		"secret":               map[string]any{},
		"didDocumentOperation": []string{"setDidDocument"},
		"didDocument":          []any{document},
	}
	return c.post(ctx, "update", payload)
}

// Deactivate marks the DID as deactivated at the registrar.
func (c *Client) Deactivate(ctx context.Context, didURI string) (*Response, error) {
	if c.baseURL == "" {
		return c.stub(ctx, "deactivate", didURI)
	}
	payload := map[string]any{
		"jobId":   nil,
		"did":     didURI,
		"options": map[string]any{},
		"secret":  map[string]any{},
	}
	return c.post(ctx, "deactivate", payload)
}

func (c *Client) post(ctx context.Context, operation string, payload map[string]any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal registrar payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/1.0/%s", c.baseURL, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build registrar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrapf(err, dErrors.CodeExternalService, "registrar %s unreachable", operation)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to read registrar response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.ErrorContext(ctx, "registrar returned error",
			"operation", operation, "status", resp.StatusCode, "body", truncate(string(raw), 200))
		return nil, dErrors.Newf(dErrors.CodeExternalService,
			"registrar %s failed with HTTP %d", operation, resp.StatusCode)
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "failed to parse registrar response")
	}
	parsed.Raw = raw

	if parsed.DIDState.State == StateFailed {
		reason := parsed.DIDState.Reason
		if reason == "" {
			reason = "unknown error"
		}
		return nil, dErrors.Newf(dErrors.CodeExternalService, "registrar %s failed: %s", operation, reason)
	}
	return &parsed, nil
}

func (c *Client) stub(ctx context.Context, operation, didURI string) (*Response, error) {
	c.logger.WarnContext(ctx, "registrar not configured, returning stub response", "operation", operation)
	response := Response{
		DIDState: DIDState{State: StateFinished, DID: didURI},
	}
	raw, err := json.Marshal(map[string]any{
		"didState": map[string]any{"state": StateFinished, "did": didURI, "didDocument": map[string]any{}},
		"_stub":    true,
	})
	if err != nil {
		return nil, err
	}
	response.Raw = raw
	return &response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
