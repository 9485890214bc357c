// Package archive calls the external export service that renders a branch's
// content into a downloadable archive.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"heirloom/internal/succession/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/circuit"
	"heirloom/pkg/platform/sentinel"
)

const maxResponseBytes = 1 << 20

// Client is an ArchiveGenerator backed by the export service. Consecutive
// failures open the breaker; while open, calls fail fast with
// sentinel.ErrUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuit.New("archive"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	BranchID string `json:"branch_id"`
}

type generateResponse struct {
	Handle      string `json:"handle"`
	DownloadURL string `json:"download_url"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (c *Client) Generate(ctx context.Context, branchID id.BranchID) (*models.Archive, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("archive service circuit open: %w", sentinel.ErrUnavailable)
	}

	archive, err := c.generate(ctx, branchID)
	if err != nil {
		_, change := c.breaker.RecordFailure()
		if change.Opened && c.logger != nil {
			c.logger.WarnContext(ctx, "archive service circuit opened", "error", err)
		}
		return nil, err
	}
	_, change := c.breaker.RecordSuccess()
	if change.Closed && c.logger != nil {
		c.logger.InfoContext(ctx, "archive service circuit closed")
	}
	return archive, nil
}

func (c *Client) generate(ctx context.Context, branchID id.BranchID) (*models.Archive, error) {
	body, err := json.Marshal(generateRequest{BranchID: branchID.String()})
	if err != nil {
		return nil, fmt.Errorf("encode archive request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/archives", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call archive service: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read archive response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("archive service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}
	if out.Handle == "" {
		return nil, fmt.Errorf("archive service returned no handle")
	}
	return &models.Archive{Handle: out.Handle, DownloadURL: out.DownloadURL, SizeBytes: out.SizeBytes}, nil
}
