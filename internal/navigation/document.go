package navigation

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const loadingClass = "is-loading"

var errNoContainer = errors.New("navigation: document has no dynamic container")

// Document is the page currently shown. Apply swaps its dynamic container
// for the one of a freshly loaded Page.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	url  *url.URL
}

// ParseDocument parses the HTML of the page served at pageURL.
func ParseDocument(r io.Reader, pageURL string) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("navigation: parse url: %w", err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("navigation: parse document: %w", err)
	}
	return &Document{root: root, url: u}, nil
}

// URL returns the address the document currently reflects.
func (d *Document) URL() *url.URL {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := *d.url
	return &u
}

// Title returns the text of the title element.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if title := findElement(d.root, "title"); title != nil {
		return textContent(title)
	}
	return ""
}

// Dynamic reports whether the document has a container to swap.
func (d *Document) Dynamic() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return findByAttr(d.root, containerAttr) != nil
}

// ContainerHTML renders the current dynamic container.
func (d *Document) ContainerHTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return RenderNode(findByAttr(d.root, containerAttr))
}

// Apply replaces the dynamic container and title with the page's and
// records the page URL.
func (d *Document) Apply(page Page) error {
	if page.Container == nil {
		return &FallbackError{URL: urlString(page.URL)}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	current := findByAttr(d.root, containerAttr)
	if current == nil || current.Parent == nil {
		return errNoContainer
	}
	parent := current.Parent
	parent.InsertBefore(page.Container, current)
	parent.RemoveChild(current)

	if page.HasTitle {
		title := findElement(d.root, "title")
		if title == nil {
			title = newElement(atom.Title)
			if head := findElement(d.root, "head"); head != nil {
				head.AppendChild(title)
			}
		}
		setText(title, page.Title)
	}
	if page.URL != nil {
		next := *d.url
		next.Path = page.URL.Path
		next.RawPath = page.URL.RawPath
		next.RawQuery = page.URL.RawQuery
		next.Fragment = ""
		d.url = &next
	}
	return nil
}

// Render serialises the whole document.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return RenderNode(d.root)
}

// Links returns the href of every element marked data-dynamic-link.
func (d *Document) Links() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, n := range findAllByAttr(d.root, "data-dynamic-link") {
		if href, ok := attr(n, "href"); ok && href != "" {
			out = append(out, href)
		}
	}
	return out
}

// Forms returns the dynamic forms of the document in document order.
func (d *Document) Forms() []Form {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Form
	for i, n := range findAllByAttr(d.root, "data-dynamic-form") {
		if n.Data != "form" {
			continue
		}
		out = append(out, readForm(n, i))
	}
	return out
}

func (d *Document) setLoading(loading bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	container := findByAttr(d.root, containerAttr)
	if container == nil {
		return
	}
	if loading {
		addClass(container, loadingClass)
	} else {
		removeClass(container, loadingClass)
	}
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
