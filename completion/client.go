package completion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chatanyllm/chatanyllm/provider"
	"github.com/fogfish/opts"
)

const (
	// DefaultTimeout bounds one completion request end to end, including
	// the full stream read.
	DefaultTimeout = 60 * time.Second

	// probeTimeout bounds a connection test. Probes hit a models listing
	// and should be quick.
	probeTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is captured into
	// HTTPError.Body.
	maxErrorBody = 8 << 10
)

// StreamFunc receives each text delta as it is decoded from the stream. It
// is invoked synchronously on the goroutine driving the request; deltas
// arrive in order and never concurrently.
type StreamFunc func(delta string)

// Client executes completion requests shaped by the provider families. It
// performs no retries: one request, one outcome.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

var (
	// WithTimeout overrides the per-request bound.
	WithTimeout = opts.ForName[Client, time.Duration]("timeout")

	// WithHTTPClient substitutes the transport, mostly for tests.
	WithHTTPClient = opts.ForName[Client, *http.Client]("http")
)

// New creates a completion client with the default timeout and transport.
func New(options ...opts.Option[Client]) (*Client, error) {
	c := &Client{
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}
	return c, nil
}

// Complete runs one completion request and returns the full assistant text.
// For streaming requests every decoded delta is handed to onDelta before the
// accumulated result is returned; for non-streaming requests onDelta is not
// invoked. The error is a *TimeoutError when the request exceeded the
// client's bound and a *HTTPError for non-2xx provider responses.
func (c *Client) Complete(ctx context.Context, req provider.Request, onDelta StreamFunc) (string, error) {
	fam, err := provider.For(req.Provider)
	if err != nil {
		return "", err
	}
	cfg, err := provider.Get(req.Provider)
	if err != nil {
		return "", err
	}
	if req.APIKey == "" && cfg.RequiresAPIKey {
		return "", fmt.Errorf("%s: %w", req.Provider, provider.ErrMissingAPIKey)
	}
	// Providers that only speak plain JSON get a non-streaming request
	// even when the caller asked to stream; the body carries stream:false
	// and the response is parsed whole.
	if !cfg.SupportsStreaming {
		req.Stream = false
	}

	wire, err := fam.BuildRequest(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, wire)
	if err != nil {
		return "", c.sendErr(req.Provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newHTTPError(req.Provider, resp)
	}

	if req.Stream {
		text, err := decodeStream(fam, resp.Body, onDelta)
		if err != nil {
			return text, c.sendErr(req.Provider, err)
		}
		return text, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.sendErr(req.Provider, err)
	}
	return fam.ExtractResponse(raw)
}

// TestConnection verifies an API key by hitting the family's models listing.
// A nil return means the credentials were accepted.
func (c *Client) TestConnection(ctx context.Context, name provider.Name, apiKey, baseURL string) error {
	fam, err := provider.For(name)
	if err != nil {
		return err
	}
	wire, err := fam.ProbeRequest(apiKey, baseURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, wire)
	if err != nil {
		return fmt.Errorf("probe %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(name, resp)
	}
	slog.Debug("connection test passed", slog.String("provider", name.String()))
	return nil
}

func (c *Client) do(ctx context.Context, method string, wire provider.WireRequest) (*http.Response, error) {
	var body io.Reader
	if len(wire.Body) > 0 {
		body = bytes.NewReader(wire.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, wire.URL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range wire.Headers {
		req.Header[key] = values
	}
	return c.http.Do(req)
}

// sendErr maps context deadline failures onto TimeoutError so callers can
// tell a slow provider apart from a broken one.
func (c *Client) sendErr(name provider.Name, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: name, Bound: c.timeout}
	}
	return fmt.Errorf("%s request: %w", name, err)
}
