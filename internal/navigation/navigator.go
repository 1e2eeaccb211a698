package navigation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/html"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

const (
	// HeaderRequestedWith marks a request as a partial page load.
	HeaderRequestedWith = "X-Requested-With"
	// XMLHttpRequest is the HeaderRequestedWith value.
	XMLHttpRequest = "XMLHttpRequest"

	containerAttr = "data-dynamic-container"
	maxPageBytes  = 5 << 20
)

// ErrFallback means the page could not be swapped in place and the caller
// should perform a full navigation to the URL instead.
var ErrFallback = errors.New("navigation: full page load required")

// FallbackError carries the URL a full navigation should go to.
type FallbackError struct {
	URL string
	Err error
}

func (e *FallbackError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("navigation: fall back to %s", e.URL)
	}
	return fmt.Sprintf("navigation: fall back to %s: %v", e.URL, e.Err)
}

func (e *FallbackError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFallback}
	}
	return []error{ErrFallback, e.Err}
}

// Page is a fetched document reduced to what a swap needs.
type Page struct {
	URL       *url.URL
	Title     string
	HasTitle  bool
	Container *html.Node
	// Fallback is set when the response had no dynamic container.
	Fallback bool
}

// Navigator fetches pages the way the in-page script does: same-origin
// cookies and the XMLHttpRequest marker header.
type Navigator struct {
	client *http.Client
	logger *logging.Logger
}

// Option customises a Navigator.
type Option func(*Navigator)

// WithHTTPClient overrides the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Navigator) {
		if client != nil {
			n.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNavigator returns a Navigator with its own cookie jar.
func NewNavigator(opts ...Option) *Navigator {
	jar, _ := cookiejar.New(nil)
	n := &Navigator{
		client: &http.Client{Timeout: 15 * time.Second, Jar: jar},
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Load fetches target and extracts its dynamic container and title.
// Transport failures and non-2xx responses return a *FallbackError.
func (n *Navigator) Load(ctx context.Context, target string) (Page, error) {
	u, err := url.Parse(target)
	if err != nil {
		return Page{}, fmt.Errorf("navigation: parse url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("navigation: build request: %w", err)
	}
	req.Header.Set(HeaderRequestedWith, XMLHttpRequest)

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("navigation: load failed", "url", u.String(), "error", err)
		return Page{}, &FallbackError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("navigation: unexpected status", "url", u.String(), "status", resp.StatusCode)
		return Page{}, &FallbackError{URL: u.String(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, &FallbackError{URL: u.String(), Err: err}
	}

	page := Page{URL: u}
	if title := findElement(doc, "title"); title != nil {
		page.Title = textContent(title)
		page.HasTitle = true
	}
	container := findByAttr(doc, containerAttr)
	if container == nil {
		page.Fallback = true
		return page, nil
	}
	if container.Parent != nil {
		container.Parent.RemoveChild(container)
	}
	page.Container = container
	return page, nil
}

// IsPartial reports whether r was sent by the partial navigation script.
func IsPartial(r *http.Request) bool {
	return r.Header.Get(HeaderRequestedWith) == XMLHttpRequest
}
