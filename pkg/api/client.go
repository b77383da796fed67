package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	settings "github.com/inkcloud/go-settings"
	"github.com/inkcloud/go-settings/pkg/stock"
)

// DefaultTimeout bounds every client request unless overridden.
const DefaultTimeout = 10 * time.Second

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithActor sends id as the acting user on mutations.
func WithActor(id string) ClientOption {
	return func(c *Client) {
		c.actor = strings.TrimSpace(id)
	}
}

// Client talks to a Server. It implements stock.Ledger; Domain returns the
// per-domain settings collaborator.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	actor   string
}

var _ stock.Ledger = (*Client)(nil)

// NewClient parses baseURL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q needs a scheme and host", baseURL)
	}
	c := &Client{base: base, http: http.DefaultClient, timeout: DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Domain returns a collaborator for one settings domain.
func (c *Client) Domain(name string) *DomainClient {
	return &DomainClient{client: c, domain: name}
}

// Domains lists the served domains.
func (c *Client) Domains(ctx context.Context) ([]DomainInfo, error) {
	var out []DomainInfo
	err := c.do(ctx, http.MethodGet, "/v1/domains", nil, nil, &out)
	return out, err
}

// Summary fetches the tenant summary.
func (c *Client) Summary(ctx context.Context, tenant string) (Summary, error) {
	var out Summary
	err := c.do(ctx, http.MethodGet, "/v1/tenants/"+url.PathEscape(tenant)+"/summary", nil, nil, &out)
	return out, err
}

func (c *Client) Fetch(ctx context.Context, product, field string, limit, offset int) (stock.Entry, error) {
	query := url.Values{}
	query.Set("product_id", product)
	query.Set("field_id", field)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	var entry stock.Entry
	err := c.do(ctx, http.MethodGet, "/v1/stock?"+query.Encode(), nil, nil, &entry)
	if entry.Items == nil {
		entry.Items = []string{}
	}
	return entry, err
}

func (c *Client) Add(ctx context.Context, product, field string, items []string) (int, error) {
	var out AddResponse
	err := c.do(ctx, http.MethodPost, "/v1/stock/add", nil,
		StockRequest{ProductID: product, FieldID: field, Items: nonNil(items)}, &out)
	return out.Added, err
}

func (c *Client) SetInfinite(ctx context.Context, product, field, value string) error {
	return c.do(ctx, http.MethodPost, "/v1/stock/infinite", nil,
		StockRequest{ProductID: product, FieldID: field, Value: value}, nil)
}

func (c *Client) Clear(ctx context.Context, product, field string) error {
	return c.do(ctx, http.MethodPost, "/v1/stock/clear", nil,
		StockRequest{ProductID: product, FieldID: field}, nil)
}

func (c *Client) Pull(ctx context.Context, product, field string, quantity int) ([]string, error) {
	if err := stock.CheckQuantity(quantity); err != nil {
		return nil, err
	}
	var out PullResponse
	err := c.do(ctx, http.MethodPost, "/v1/stock/pull", nil,
		StockRequest{ProductID: product, FieldID: field, Quantity: quantity}, &out)
	return out.Items, err
}

// do sends body as JSON and decodes a 2xx response into out. Other statuses
// become *Error.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.actor != "" {
		req.Header.Set(HeaderActor, c.actor)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, MaxRequestBodySize))
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Message: body.Error}
}

// IsStatus reports whether err is an *Error with status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// DomainClient is the settings collaborator for one domain. It implements
// settings.Collaborator and settings.ToggleClient.
type DomainClient struct {
	client *Client
	domain string
}

var (
	_ settings.Collaborator = (*DomainClient)(nil)
	_ settings.ToggleClient = (*DomainClient)(nil)
)

func (d *DomainClient) path(tenant string) string {
	return "/v1/tenants/" + url.PathEscape(tenant) + "/settings/" + url.PathEscape(d.domain)
}

// Load fetches the tenant's document.
func (d *DomainClient) Load(ctx context.Context, tenant string) (settings.Document, error) {
	var doc settings.Document
	if err := d.client.do(ctx, http.MethodGet, d.path(tenant), nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Persist replaces the document and returns the server's canonical copy.
func (d *DomainClient) Persist(ctx context.Context, tenant string, doc settings.Document) (settings.Document, error) {
	var out settings.Document
	if err := d.client.do(ctx, http.MethodPut, d.path(tenant), nil, doc, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Patch merges partial into the stored document. A non-empty etag is sent
// as If-Match.
func (d *DomainClient) Patch(ctx context.Context, tenant string, partial settings.Document, etag string) (settings.Document, error) {
	header := http.Header{}
	if etag != "" {
		header.Set("If-Match", `"`+etag+`"`)
	}
	var out settings.Document
	if err := d.client.do(ctx, http.MethodPatch, d.path(tenant), header, partial, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetEnabled writes group.id.enabled.
func (d *DomainClient) SetEnabled(ctx context.Context, tenant, group, id string, enabled bool) error {
	path := d.path(tenant) + "/" + url.PathEscape(group) + "/" + url.PathEscape(id) + "/enabled"
	return d.client.do(ctx, http.MethodPut, path, nil, EnabledRequest{Enabled: &enabled}, nil)
}
