package navigation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

// ErrNotIntercepted is returned for forms that must be submitted natively.
var ErrNotIntercepted = errors.New("navigation: form is not handled in place")

// Browser drives a Document: dynamic links and GET forms load the target
// with the Navigator and swap the container instead of reloading the page.
// Responses are applied in the order they arrive; an older response that
// lands after a newer one still wins.
type Browser struct {
	nav        *Navigator
	doc        *Document
	debouncer  *Debouncer
	logger     *logging.Logger
	onFallback func(error)
}

// BrowserOption customises a Browser.
type BrowserOption func(*Browser)

// WithFallbackHandler receives errors from debounced submissions, typically
// to perform the full navigation a *FallbackError asks for.
func WithFallbackHandler(fn func(error)) BrowserOption {
	return func(b *Browser) { b.onFallback = fn }
}

// WithBrowserLogger sets the logger.
func WithBrowserLogger(logger *logging.Logger) BrowserOption {
	return func(b *Browser) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBrowser binds nav to doc.
func NewBrowser(nav *Navigator, doc *Document, opts ...BrowserOption) *Browser {
	b := &Browser{
		nav:       nav,
		doc:       doc,
		debouncer: NewDebouncer(),
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Document returns the driven document.
func (b *Browser) Document() *Document {
	return b.doc
}

// Follow handles a click on a dynamic link.
func (b *Browser) Follow(ctx context.Context, href string) error {
	if href == "" {
		return nil
	}
	target, err := b.doc.URL().Parse(href)
	if err != nil {
		return fmt.Errorf("navigation: resolve link: %w", err)
	}
	return b.loadAndSwap(ctx, target)
}

// Submit handles an explicit submit of form, dropping any pending
// auto-submit for it.
func (b *Browser) Submit(ctx context.Context, form Form) error {
	if !Intercepts(form.Method) {
		return ErrNotIntercepted
	}
	b.debouncer.Cancel(form.Key)
	return b.submit(ctx, form)
}

// Changed handles a change of the named control. Only data-auto-submit
// controls submit the form, after the control's delay or right away
// without one.
func (b *Browser) Changed(ctx context.Context, form Form, name string) {
	if field, ok := form.Field(name); !ok || !field.AutoSubmit {
		return
	}
	b.debouncer.Schedule(form.Key, form.ChangeDelay(name), func() {
		if err := b.submit(ctx, form); err != nil {
			b.logger.Warn("navigation: auto-submit failed", "form", form.Key, "error", err)
			if b.onFallback != nil {
				b.onFallback(err)
			}
		}
	})
}

// Close cancels pending auto-submits.
func (b *Browser) Close() {
	b.debouncer.Stop()
}

func (b *Browser) submit(ctx context.Context, form Form) error {
	target, err := FormURL(b.doc.URL(), form.Action, form.Fields)
	if err != nil {
		return err
	}
	return b.loadAndSwap(ctx, target)
}

func (b *Browser) loadAndSwap(ctx context.Context, target *url.URL) error {
	if !b.doc.Dynamic() {
		return errNoContainer
	}
	start := time.Now()
	b.doc.setLoading(true)
	defer b.doc.setLoading(false)

	page, err := b.nav.Load(ctx, target.String())
	if err != nil {
		return err
	}
	if page.Fallback {
		return &FallbackError{URL: target.String()}
	}
	if err := b.doc.Apply(page); err != nil {
		return err
	}
	b.logger.Debug("navigation: swapped", "url", target.String(), "duration_ms", time.Since(start).Milliseconds())
	return nil
}
