package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

var supportTracer = otel.Tracer("salon.internal.support")

// ErrNotConfigured is returned when the endpoint an operation needs is
// empty.
var ErrNotConfigured = errors.New("support: endpoint not configured")

const (
	csrfHeader     = "X-CSRFToken"
	csrfCookieName = "csrftoken"
	maxBodyBytes   = 4 << 20
)

// Endpoints are the backend URLs. Templates contain PlaceholderID where the
// thread id goes.
type Endpoints struct {
	ThreadsURL          string
	MessagesURLTemplate string
	SendURLTemplate     string
	CloseURLTemplate    string
	WidgetStateURL      string
	WidgetSendURL       string
}

// DefaultEndpoints returns the standard routes under baseURL.
func DefaultEndpoints(baseURL string) Endpoints {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Endpoints{}
	}
	return Endpoints{
		ThreadsURL:          base + "/support/inbox/threads/",
		MessagesURLTemplate: base + "/support/inbox/threads/" + PlaceholderID + "/messages/",
		SendURLTemplate:     base + "/support/inbox/threads/" + PlaceholderID + "/send/",
		CloseURLTemplate:    base + "/support/inbox/threads/" + PlaceholderID + "/close/",
		WidgetStateURL:      base + "/support/widget/state/",
		WidgetSendURL:       base + "/support/widget/send/",
	}
}

// Client talks to the support backend with the visitor's (or staff
// member's) cookies.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	csrfToken  string
	logger     *logging.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the default client. Its Jar carries the
// session and CSRF cookies.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCSRFToken fixes the token sent in X-CSRFToken. Without it the
// csrftoken cookie is used.
func WithCSRFToken(token string) Option {
	return func(c *Client) {
		c.csrfToken = strings.TrimSpace(token)
	}
}

// WithCookie seeds a cookie for every configured endpoint host, typically
// the backend session cookie.
func WithCookie(name, value string) Option {
	return func(c *Client) {
		if name == "" || value == "" || c.httpClient.Jar == nil {
			return
		}
		for _, raw := range c.endpoints.all() {
			u, err := url.Parse(raw)
			if err != nil || u.Host == "" {
				continue
			}
			c.httpClient.Jar.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
		}
	}
}

// NewClient creates a Client with its own cookie jar.
func NewClient(endpoints Endpoints, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 15 * time.Second, Jar: jar},
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threads lists the open threads.
func (c *Client) Threads(ctx context.Context) ([]Thread, error) {
	var out struct {
		Threads []Thread `json:"threads"`
	}
	if err := c.getJSON(ctx, "support.threads", c.endpoints.ThreadsURL, &out); err != nil {
		return nil, err
	}
	if out.Threads == nil {
		out.Threads = []Thread{}
	}
	return out.Threads, nil
}

// Messages loads a thread and its messages.
func (c *Client) Messages(ctx context.Context, threadID string) (ThreadMessages, error) {
	var out ThreadMessages
	target, err := expand(c.endpoints.MessagesURLTemplate, threadID)
	if err != nil {
		return out, err
	}
	if err := c.getJSON(ctx, "support.messages", target, &out); err != nil {
		return ThreadMessages{}, err
	}
	return out, nil
}

// Reply posts a staff message to a thread.
func (c *Client) Reply(ctx context.Context, threadID string, reply Reply) (Message, error) {
	target, err := expand(c.endpoints.SendURLTemplate, threadID)
	if err != nil {
		return Message{}, err
	}
	fields := [][2]string{{"message", reply.Message}}
	var out struct {
		Message Message `json:"message"`
	}
	if err := c.postForm(ctx, "support.reply", target, fields, reply.Attachment, &out); err != nil {
		return Message{}, err
	}
	return out.Message, nil
}

// Close marks a thread closed.
func (c *Client) Close(ctx context.Context, threadID string) error {
	target, err := expand(c.endpoints.CloseURLTemplate, threadID)
	if err != nil {
		return err
	}
	return c.postForm(ctx, "support.close", target, nil, nil, nil)
}

// WidgetState loads the customer's thread.
func (c *Client) WidgetState(ctx context.Context) (WidgetState, error) {
	var out WidgetState
	if err := c.getJSON(ctx, "support.widget_state", c.endpoints.WidgetStateURL, &out); err != nil {
		return WidgetState{}, err
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out, nil
}

// WidgetSend posts a customer message. threadID is empty for the first
// message, which creates the thread.
func (c *Client) WidgetSend(ctx context.Context, threadID string, msg WidgetMessage) (SendResult, error) {
	if c.endpoints.WidgetSendURL == "" {
		return SendResult{}, ErrNotConfigured
	}
	fields := [][2]string{
		{"contact_name", msg.ContactName},
		{"contact_email", msg.ContactEmail},
		{"message", msg.Message},
	}
	if threadID != "" {
		fields = append(fields, [2]string{"thread_id", threadID})
	}
	var out SendResult
	if err := c.postForm(ctx, "support.widget_send", c.endpoints.WidgetSendURL, fields, msg.Attachment, &out); err != nil {
		return SendResult{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, op, target string, out any) error {
	if target == "" {
		return ErrNotConfigured
	}
	ctx, span := supportTracer.Start(ctx, op)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("support: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(span, req, out)
}

func (c *Client) postForm(ctx context.Context, op, target string, fields [][2]string, file *File, out any) error {
	if target == "" {
		return ErrNotConfigured
	}
	ctx, span := supportTracer.Start(ctx, op)
	defer span.End()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("support: write field %s: %w", f[0], err)
		}
	}
	if file != nil && file.Content != nil {
		part, err := writer.CreateFormFile("attachment", file.Name)
		if err != nil {
			return fmt.Errorf("support: create attachment: %w", err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return fmt.Errorf("support: copy attachment: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("support: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
	if err != nil {
		return fmt.Errorf("support: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if token := c.csrf(req.URL); token != "" {
		req.Header.Set(csrfHeader, token)
	}
	return c.do(span, req, out)
}

func (c *Client) do(span trace.Span, req *http.Request, out any) error {
	span.SetAttributes(attribute.String("http.method", req.Method), attribute.String("http.url", req.URL.Path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("support: http error: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("support: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusBadRequest {
			if verr := decodeValidationError(data); verr != nil {
				return verr
			}
		}
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(data)}
		span.RecordError(statusErr)
		c.logger.Warn("support: request failed", "url", req.URL.Path, "status", resp.StatusCode)
		return statusErr
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("support: decode response: %w", err)
	}
	return nil
}

func (c *Client) csrf(target *url.URL) string {
	if c.csrfToken != "" {
		return c.csrfToken
	}
	if c.httpClient.Jar == nil {
		return ""
	}
	for _, cookie := range c.httpClient.Jar.Cookies(target) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

func expand(template, threadID string) (string, error) {
	if template == "" {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(threadID) == "" {
		return "", errors.New("support: thread id required")
	}
	return strings.Replace(template, PlaceholderID, url.PathEscape(threadID), 1), nil
}

func (e Endpoints) all() []string {
	return []string{e.ThreadsURL, e.MessagesURLTemplate, e.SendURLTemplate, e.CloseURLTemplate, e.WidgetStateURL, e.WidgetSendURL}
}
