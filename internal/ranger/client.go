// Package ranger fetches authorization policies from the Ranger Admin
// public REST API.
package ranger

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/proxy"

	"github.com/ppiankov/rangerwatch/internal/config"
)

// PolicyPath is the v1 public policy endpoint. A policy id may be appended.
const PolicyPath = "/service/public/api/policy"

// Response bodies larger than this are rejected rather than truncated.
var maxBodyBytes int64 = 32 << 20

// Retry delay for connection errors; doubles per attempt.
var retryDelay = time.Second

// StatusError is a non-200 response from Ranger Admin.
type StatusError struct {
	Status  string
	Message string // msgDesc from the JSON error body, if any
	Code    int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("Ranger returned %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("Ranger returned %s", e.Status)
}

// Client talks to one Ranger Admin instance.
type Client struct {
	http     *http.Client
	tracer   trace.Tracer
	baseURL  string
	endpoint string
	user     string
	password string
	retries  int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTracer sets the tracer used for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithBaseURL points the client at an explicit base URL (scheme://host:port).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
		if parsed, err := url.Parse(u); err == nil {
			c.endpoint = parsed.Host
		}
	}
}

// New builds a client from connection settings.
func New(cfg config.RangerConfig, opts ...Option) (*Client, error) {
	scheme := "http"
	if cfg.SSL || cfg.SSLNoVerify || cfg.CAFile != "" {
		scheme = "https"
	}
	endpoint := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	c := &Client{
		baseURL:  scheme + "://" + endpoint,
		endpoint: endpoint,
		user:     cfg.User,
		password: cfg.Password,
		retries:  cfg.Retries,
		tracer:   otel.Tracer("github.com/ppiankov/rangerwatch/internal/ranger"),
	}
	for _, o := range opts {
		o(c)
	}

	if c.http == nil {
		transport, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		c.http = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		}
	}
	return c, nil
}

func newTransport(cfg config.RangerConfig) (*http.Transport, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone() //nolint:errcheck // DefaultTransport is always *http.Transport

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SSLNoVerify, //nolint:gosec // operator opt-in via --ssl-noverify
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	tr.TLSClientConfig = tlsCfg

	if cfg.SOCKS5 != "" {
		socksDialer, err := proxy.SOCKS5("tcp", cfg.SOCKS5, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
		}
		ctxDialer, ok := socksDialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support DialContext")
		}
		tr.Proxy = nil
		tr.DialContext = ctxDialer.DialContext
	}
	return tr, nil
}

// Endpoint returns host:port of the Ranger Admin instance.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Fetch returns the raw JSON body of the policy endpoint: the policy list
// when id is empty, otherwise the single policy with that id. Connection
// errors are retried; HTTP errors are not.
func (c *Client) Fetch(ctx context.Context, id string) ([]byte, error) {
	path := PolicyPath
	if id != "" {
		path += "/" + url.PathEscape(id)
	}

	ctx, span := c.tracer.Start(ctx, "ranger.fetch",
		trace.WithAttributes(
			attribute.String("ranger.endpoint", c.endpoint),
			attribute.String("ranger.path", path),
		),
	)
	defer span.End()

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay * time.Duration(1<<uint(attempt-1))):
			}
		}

		body, err := c.get(ctx, path)
		if err == nil {
			span.SetAttributes(attribute.Int("ranger.retries", attempt), attribute.Int("ranger.bytes", len(body)))
			return body, nil
		}
		lastErr = err
		if !isDialError(err) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying Ranger at '%s': %w", c.endpoint, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > maxBodyBytes {
		return nil, fmt.Errorf("response from Ranger at '%s' exceeds %d bytes", c.endpoint, maxBodyBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			Code:    resp.StatusCode,
			Status:  resp.Status,
			Message: errorMessage(body),
		}
	}
	return body, nil
}

// errorMessage extracts msgDesc from a Ranger JSON error body.
func errorMessage(body []byte) string {
	var e struct {
		MsgDesc string `json:"msgDesc"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.MsgDesc
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
