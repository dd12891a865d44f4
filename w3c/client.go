// Package w3c submits HTML documents to a W3C-style markup-validation
// service and parses the verdict pages it returns.
package w3c

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

// DefaultCheckURL is the public W3C markup-validation endpoint.
const DefaultCheckURL = "http://validator.w3.org/check"

// DefaultTimeout bounds a single validation round trip performed with the
// built-in HTTP client.
const DefaultTimeout = 30 * time.Second

// Client validates HTML documents against one check endpoint.
//
// A Client is safe for concurrent use: the underlying *http.Client is built
// once, lazily, and shared by all calls, and *http.Client is documented as
// safe for use by multiple goroutines. A client supplied through
// WithHTTPClient must give the same guarantee.
type Client struct {
	checkURL   string
	pathPrefix string
	timeout    time.Duration

	once  sync.Once
	httpc *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient makes the Client send requests through h instead of
// building its own. h must be safe for concurrent use.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTimeout bounds each validation round trip. It applies to the lazily
// built default client only; a client injected with WithHTTPClient keeps
// its own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient returns a Client posting to checkURL. An empty checkURL selects
// DefaultCheckURL.
func NewClient(checkURL string, opts ...Option) *Client {
	if checkURL == "" {
		checkURL = DefaultCheckURL
	}
	c := &Client{
		checkURL:   checkURL,
		pathPrefix: checkURL[:strings.LastIndex(checkURL, "/")+1],
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckURL returns the endpoint this client validates against.
func (c *Client) CheckURL() string { return c.checkURL }

// Validate submits html to the validation service and parses the verdict.
// It performs exactly one synchronous POST, with no retries. Failures to
// reach the service come back as *TransportError, a non-200 answer as
// *UpstreamError, and a verdict-less result page as
// *MalformedResponseError.
func (c *Client) Validate(ctx context.Context, html string) (*Result, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := [...][2]string{
		{"fragment", html},
		{"prefill", "0"},
		{"doctype", "Inline"},
		{"prefill_doctype", "html401"},
		// List messages sequentially instead of grouping by type.
		{"group", "0"},
		// Show source.
		{"ss", "1"},
		{"verbose", "1"},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return nil, &TransportError{Err: err}
		}
	}
	if err := form.Close(); err != nil {
		return nil, &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.checkURL, &body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() {
		// Drain before closing so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{URL: c.checkURL, Status: resp.StatusCode}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	page := decodeBody(raw, resp.Header.Get("Content-Type"))
	return ParseResult(c.absolutize(page))
}

// client returns the shared HTTP client, building the default one on first
// use.
func (c *Client) client() *http.Client {
	c.once.Do(func() {
		if c.httpc == nil {
			c.httpc = &http.Client{Timeout: c.timeout}
		}
	})
	return c.httpc
}

// absolutize rewrites the relative references a result page uses for its own
// stylesheets, images and scripts, so the page still renders when served
// from another origin.
func (c *Client) absolutize(page string) string {
	page = strings.ReplaceAll(page, `"./`, `"`+c.pathPrefix)
	page = strings.ReplaceAll(page, `src="images/`, `src="`+c.pathPrefix+`images/`)
	page = strings.ReplaceAll(page,
		`<script type="text/javascript" src="loadexplanation.js">`,
		`<script type="text/javascript" src="`+c.pathPrefix+`loadexplanation.js">`)
	return page
}

// decodeBody converts a response body to a string honoring the charset
// declared in its Content-Type. Missing, unknown or broken charsets fall
// back to UTF-8.
func decodeBody(raw []byte, contentType string) string {
	cs := charsetParam(contentType)
	if cs == "" || strings.EqualFold(cs, "utf-8") {
		return string(raw)
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// charsetParam extracts the charset parameter from a Content-Type value.
func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
