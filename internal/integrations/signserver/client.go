// Package signserver signs canonical DID document bytes through the
// SignServer CE REST API, returning a detached JWS signature.
package signserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dErrors "annuaire/pkg/domain-errors"
)

const (
	defaultWorkerName = "DIDDocumentSigner"
	defaultTimeout    = 30 * time.Second

	// stubJWS is returned when no process URL is configured, keeping
	// local development working without a SignServer deployment.
	stubJWS = "eyJhbGciOiJFUzI1NiJ9..STUB_SIGNATURE_DEV_MODE"
)

// Client calls the SignServer process endpoint. An empty processURL puts
// the client in stub mode.
type Client struct {
	processURL string
	workerName string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(c *Client)

func WithWorkerName(name string) Option {
	return func(c *Client) {
		c.workerName = name
	}
}

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
func New(processURL string, opts ...Option) *Client {
	c := &Client{
		processURL: processURL,
		workerName: defaultWorkerName,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sign canonicalizes the document and submits it for signing, returning
// the JWS compact serialization with a detached payload.
func (c *Client) Sign(ctx context.Context, document any) (string, error) {
	canonical, err := CanonicalJSON(document)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to canonicalize document")
	}

	if c.processURL == "" {
		c.logger.WarnContext(ctx, "signserver not configured, returning stub signature")
		return stubJWS, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(canonical))
	if err != nil {
		return "", fmt.Errorf("build signserver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SignServer-WorkerName", c.workerName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternalService, "signserver unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternalService, "failed to read signserver response")
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "signserver returned error",
			"status", resp.StatusCode, "body", truncate(string(body), 200))
		return "", dErrors.Newf(dErrors.CodeExternalService,
			"signserver returned HTTP %d", resp.StatusCode)
	}

	jws := strings.TrimSpace(string(body))
	if jws == "" {
		return "", dErrors.New(dErrors.CodeExternalService, "signserver returned an empty signature")
	}
	return jws, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
