package navigation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Field is one name/value pair a form would submit.
type Field struct {
	Name  string
	Value string
	// AutoSubmit is set for controls marked data-auto-submit.
	AutoSubmit bool
	// Delay is the control's own data-auto-submit-delay. HasDelay is set
	// when that attribute is present, so a zero Delay means submit at once.
	Delay    time.Duration
	HasDelay bool
}

// Form is a data-dynamic-form element.
type Form struct {
	Key             string
	Action          string
	Method          string
	Fields          []Field
	AutoSubmitDelay time.Duration
}

// Set returns a copy of f with every field named name set to value,
// appending the field when absent.
func (f Form) Set(name, value string) Form {
	fields := make([]Field, 0, len(f.Fields)+1)
	found := false
	for _, field := range f.Fields {
		if field.Name == name {
			field.Value = value
			found = true
		}
		fields = append(fields, field)
	}
	if !found {
		fields = append(fields, Field{Name: name, Value: value})
	}
	f.Fields = fields
	return f
}

// Field returns the first field named name.
func (f Form) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// ChangeDelay is how long to wait after the named control changes before
// submitting: the control's own delay, else the form's.
func (f Form) ChangeDelay(name string) time.Duration {
	if field, ok := f.Field(name); ok && field.HasDelay {
		return field.Delay
	}
	return f.AutoSubmitDelay
}

// Intercepts reports whether a form with method is handled in place. Only
// GET forms are; anything else submits natively.
func Intercepts(method string) bool {
	method = strings.TrimSpace(method)
	return method == "" || strings.EqualFold(method, "get")
}

// FormURL resolves action against the origin of base (the current path
// when action is empty) and appends every non-empty field.
func FormURL(base *url.URL, action string, fields []Field) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("navigation: form url: no base url")
	}
	if strings.TrimSpace(action) == "" {
		action = base.EscapedPath()
	}
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}
	target, err := origin.Parse(action)
	if err != nil {
		return nil, fmt.Errorf("navigation: form action: %w", err)
	}
	query := target.Query()
	for _, field := range fields {
		if field.Value == "" {
			continue
		}
		query.Add(field.Name, field.Value)
	}
	target.RawQuery = query.Encode()
	return target, nil
}

// ParseDelay reads a data-auto-submit-delay value in milliseconds. Anything
// unparsable or non-positive means no delay.
func ParseDelay(value string) time.Duration {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	ms, err := strconv.Atoi(value[:end])
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func readForm(n *html.Node, index int) Form {
	f := Form{Key: fmt.Sprintf("form-%d", index)}
	if id, ok := attr(n, "id"); ok && id != "" {
		f.Key = id
	}
	f.Action, _ = attr(n, "action")
	f.Method, _ = attr(n, "method")
	if delay, ok := attr(n, "data-auto-submit-delay"); ok {
		f.AutoSubmitDelay = ParseDelay(delay)
	}

	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			if field, ok := readControl(c); ok {
				f.Fields = append(f.Fields, field)
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return f
}

func readControl(n *html.Node) (Field, bool) {
	name, ok := attr(n, "name")
	if !ok || name == "" || hasAttr(n, "disabled") {
		return Field{}, false
	}
	field := Field{Name: name, AutoSubmit: hasAttr(n, "data-auto-submit")}
	if delay, ok := attr(n, "data-auto-submit-delay"); ok && strings.TrimSpace(delay) != "" {
		field.Delay = ParseDelay(delay)
		field.HasDelay = true
	}

	switch n.Data {
	case "input":
		kind, _ := attr(n, "type")
		switch strings.ToLower(kind) {
		case "submit", "button", "reset", "file", "image":
			return Field{}, false
		case "checkbox", "radio":
			if !hasAttr(n, "checked") {
				return Field{}, false
			}
			value, ok := attr(n, "value")
			if !ok {
				value = "on"
			}
			field.Value = value
		default:
			field.Value, _ = attr(n, "value")
		}
	case "textarea":
		field.Value = textContent(n)
	case "select":
		field.Value = selectedOption(n)
	default:
		return Field{}, false
	}
	return field, true
}

func selectedOption(sel *html.Node) string {
	var first, selected *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "option" {
			if first == nil {
				first = n
			}
			if selected == nil && hasAttr(n, "selected") {
				selected = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel)
	option := selected
	if option == nil {
		option = first
	}
	if option == nil {
		return ""
	}
	if value, ok := attr(option, "value"); ok {
		return value
	}
	return strings.TrimSpace(textContent(option))
}
