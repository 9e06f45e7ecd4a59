package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/five82/galley/internal/logging"
)

// Gateway is the remote order store galley polls.
type Gateway interface {
	// FetchPending returns rows for token not yet delivered with
	// created_at strictly after since, newest first.
	FetchPending(ctx context.Context, token string, since time.Time) ([]Row, error)
	// MarkDelivered flags the rows with ids as delivered.
	MarkDelivered(ctx context.Context, ids []string) error
}

// Ensure Client implements Gateway at compile time.
var _ Gateway = (*Client)(nil)

// Client talks to a PostgREST (Supabase) endpoint.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	table     string
	userAgent string
	log       *slog.Logger
}

const (
	DefaultTable     = "kitchen_orders"
	defaultUserAgent = "galley/0.1"
	restPrefix       = "/rest/v1/"
)

// ClientOptions configure NewClient.
type ClientOptions struct {
	URL     string
	APIKey  string
	Table   string
	Timeout time.Duration // zero disables the client-side timeout
	Logger  *slog.Logger  // receives dropped-row warnings; nil discards
}

// NewClient builds a Client for the project at opts.URL.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := parseBaseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = DefaultTable
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: opts.Timeout},
		apiKey:    strings.TrimSpace(opts.APIKey),
		table:     table,
		userAgent: defaultUserAgent,
		log:       loggerOrDiscard(opts.Logger).With("component", "gateway"),
	}, nil
}

// FetchPending implements Gateway. Rows that fail to decode are logged and
// left out so they cannot hold back the rest of the batch.
func (c *Client) FetchPending(ctx context.Context, token string, since time.Time) ([]Row, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("select", "*")
	values.Set("device_id", "eq."+token)
	values.Set("sent_to_device", "eq.false")
	values.Set("created_at", "gt."+since.UTC().Format(time.RFC3339Nano))
	values.Set("order", "created_at.desc")

	var raw []json.RawMessage
	if err := c.doURL(ctx, http.MethodGet, c.tableURL(values), nil, &raw); err != nil {
		return nil, err
	}
	return DecodeRows(raw, c.log), nil
}

// MarkDelivered implements Gateway. An empty id list is a no-op.
func (c *Client) MarkDelivered(ctx context.Context, ids []string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if len(ids) == 0 {
		return nil
	}
	values := url.Values{}
	values.Set("id", "in.("+strings.Join(quoteIDs(ids), ",")+")")

	body, err := json.Marshal(map[string]bool{"sent_to_device": true})
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	return c.doURL(ctx, http.MethodPatch, c.tableURL(values), body, nil)
}

func (c *Client) tableURL(values url.Values) *url.URL {
	return &url.URL{Path: restPrefix + c.table, RawQuery: values.Encode()}
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body []byte, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: rel.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx gateway response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("gateway %s %s returned status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// quoteIDs wraps ids in double quotes for PostgREST in.() lists so values
// containing commas or parentheses stay intact.
func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}

func quoteIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id)
		out = append(out, `"`+escaped+`"`)
	}
	return out
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("gateway url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("gateway url %q has no host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
