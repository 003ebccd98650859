package onenote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft"
	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driving"
	"github.com/custodia-labs/onenote-explorer/internal/logger"
)

// Ensure Client implements the interface.
var _ driving.Dispatcher = (*Client)(nil)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// decodeMode selects how a 2xx body is turned into Response.Body.
type decodeMode int

const (
	decodeJSON decodeMode = iota
	decodeText
	// decodeAuto parses JSON unless the server labels the body as text.
	decodeAuto
)

// Client dispatches OneNote REST requests. It holds no per-request state;
// the only shared state is the default header set.
type Client struct {
	baseURL     string
	transport   driven.Transport
	headers     *Headers
	rateLimiter *microsoft.RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(t driven.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithBaseURL replaces the base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHeaders shares an existing default header set.
func WithHeaders(h *Headers) Option {
	return func(c *Client) {
		c.headers = h
	}
}

// WithRateLimiter replaces the rate limiter.
func WithRateLimiter(rl *microsoft.RateLimiter) Option {
	return func(c *Client) {
		c.rateLimiter = rl
	}
}

// New creates a dispatcher from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config, options ...Option) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rl := microsoft.NewRateLimiter(microsoft.ServiceOneNote)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		rl = microsoft.NewRateLimiterWithConfig(cfg.RateLimit)
	}

	c := &Client{
		baseURL:     cfg.BaseURL,
		transport:   &http.Client{Timeout: cfg.Timeout},
		headers:     NewHeaders(cfg.UserAgent),
		rateLimiter: rl,
	}

	for _, o := range options {
		o(c)
	}

	return c
}

// Headers returns the shared default header set.
func (c *Client) Headers() *Headers {
	return c.headers
}

// SetAuthorization installs token as the bearer for subsequent requests.
// A nil token removes the header.
func (c *Client) SetAuthorization(token *domain.AuthToken) {
	if token == nil {
		c.headers.SetAuthorization("")
		return
	}
	c.headers.SetAuthorization(token.AuthorizationHeader())
}

// Get issues a GET. With responseAsHTML the body is delivered as a string,
// otherwise it is parsed as JSON.
func (c *Client) Get(
	ctx context.Context, path string, query map[string]string, responseAsHTML bool,
) <-chan domain.Result {
	mode := decodeJSON
	header := http.Header{}
	if responseAsHTML {
		mode = decodeText
		header.Set("Accept", contentTypeHTML)
	}
	return c.dispatch(ctx, &request{
		method: http.MethodGet,
		path:   path,
		query:  query,
		header: header,
		mode:   mode,
	})
}

// Post issues a POST with params as a form-encoded body.
func (c *Client) Post(ctx context.Context, path string, params map[string]string) <-chan domain.Result {
	req := &request{
		method: http.MethodPost,
		path:   path,
		header: http.Header{},
		mode:   decodeJSON,
	}
	if len(params) > 0 {
		req.body = []byte(toValues(params).Encode())
		req.header.Set("Content-Type", contentTypeForm)
	}
	return c.dispatch(ctx, req)
}

// PostCustom issues a POST with header merged over the defaults and body sent
// verbatim. The response is parsed as JSON unless the server labels it as text.
func (c *Client) PostCustom(
	ctx context.Context, path string, header map[string]string, body string,
) <-chan domain.Result {
	h := http.Header{}
	for k, v := range header {
		h.Set(k, v)
	}
	return c.dispatch(ctx, &request{
		method: http.MethodPost,
		path:   path,
		header: h,
		body:   []byte(body),
		mode:   decodeAuto,
	})
}

// Delete issues a DELETE with query appended to the URL.
func (c *Client) Delete(ctx context.Context, path string, query map[string]string) <-chan domain.Result {
	return c.dispatch(ctx, &request{
		method: http.MethodDelete,
		path:   path,
		query:  query,
		mode:   decodeJSON,
	})
}

// Patch issues a PATCH with query appended to the URL.
func (c *Client) Patch(ctx context.Context, path string, query map[string]string) <-chan domain.Result {
	return c.dispatch(ctx, &request{
		method: http.MethodPatch,
		path:   path,
		query:  query,
		mode:   decodeJSON,
	})
}

// PostMultipart issues a POST whose multipart/form-data body has one part per
// item, in order. query is appended to the URL.
func (c *Client) PostMultipart(
	ctx context.Context, path string, query map[string]string, items []domain.MultiFormItem,
) <-chan domain.Result {
	body, contentType, err := EncodeMultipart(items)
	if err != nil {
		return domain.Fail(fmt.Errorf("build multipart body: %w", err))
	}

	header := http.Header{}
	header.Set("Content-Type", contentType)
	return c.dispatch(ctx, &request{
		method: http.MethodPost,
		path:   path,
		query:  query,
		header: header,
		body:   body.Bytes(),
		mode:   decodeJSON,
	})
}

// request is everything needed to build one HTTP request.
type request struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   []byte
	mode   decodeMode
}

// dispatch runs req on its own goroutine. The returned channel receives
// exactly one Result and is then closed.
func (c *Client) dispatch(ctx context.Context, r *request) <-chan domain.Result {
	results := make(chan domain.Result, 1)

	go func() {
		defer close(results)
		resp, err := c.do(ctx, r)
		results <- domain.Result{Response: resp, Err: err}
	}()

	return results
}

func (c *Client) do(ctx context.Context, r *request) (*domain.Response, error) {
	target, err := c.resolveURL(r.path, r.query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	var body io.Reader = http.NoBody
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrNetwork, err)
	}

	req.Header = c.headers.Clone()
	for k, v := range r.header {
		req.Header[k] = v
	}
	req.Header.Set("client-request-id", uuid.NewString())

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	logger.Debug("onenote: %s %s", r.method, target)

	resp, err := c.transport.Do(req)
	if err != nil {
		logger.Debug("onenote: %s %s failed: %v", r.method, target, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrNetwork, err)
	}

	logger.Debug("onenote: %s %s -> %d (%d bytes)", r.method, target, resp.StatusCode, len(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		switch {
		case microsoft.IsRateLimited(resp.StatusCode):
			c.rateLimiter.RecordRateLimitError(microsoft.RetryAfterSeconds(resp.Header.Get("Retry-After")))
		case microsoft.IsUnauthorised(resp.StatusCode):
			logger.Debug("onenote: access token rejected, refresh or sign in again")
		case microsoft.IsRetryable(resp.StatusCode):
			logger.Debug("onenote: transient failure %d, the request can be retried", resp.StatusCode)
		}
		return nil, &domain.StatusError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       raw,
			Cause:      microsoft.WrapError(resp.StatusCode),
		}
	}

	decoded, err := decodeBody(resp, raw, r.mode)
	if err != nil {
		return nil, err
	}

	return &domain.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       decoded,
		Raw:        raw,
	}, nil
}

// resolveURL joins path onto the base URL and merges query into any query
// already present. Absolute paths, such as @odata.nextLink, are used as is.
func (c *Client) resolveURL(path string, query map[string]string) (string, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}

	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}

	return u.String(), nil
}

func decodeBody(resp *http.Response, raw []byte, mode decodeMode) (any, error) {
	// HTML responses are always text, even when empty.
	if mode == decodeText {
		return string(raw), nil
	}
	if len(raw) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if mode == decodeAuto {
		mode = decodeJSON
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "text/") {
			mode = decodeText
		}
	}

	if mode == decodeText {
		return string(raw), nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &domain.ParseError{
			StatusCode:  resp.StatusCode,
			ContentType: contentType,
			Body:        raw,
			Err:         err,
		}
	}
	return v, nil
}

func toValues(params map[string]string) url.Values {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return values
}
