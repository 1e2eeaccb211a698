package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PlaceholderID stands for the thread id in URL templates.
const PlaceholderID = "00000000-0000-0000-0000-000000000000"

// Thread is an entry of the staff thread list.
type Thread struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	LastMessage string `json:"last_message"`
	UpdatedAt   string `json:"updated_at"`
}

// ThreadDetail describes one thread.
type ThreadDetail struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	IsClosed     bool   `json:"is_closed"`
}

// Attachment is an image sent with a message.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Message is one chat message. CreatedAt is preformatted by the backend.
type Message struct {
	ID          int64       `json:"id"`
	Body        string      `json:"body"`
	IsFromStaff bool        `json:"is_from_staff"`
	Author      string      `json:"author"`
	CreatedAt   string      `json:"created_at"`
	Attachment  *Attachment `json:"attachment,omitempty"`
}

// Text is what a message shows: its body, or a marker when it carries
// neither text nor an attachment.
func (m Message) Text() string {
	if m.Body == "" && m.Attachment == nil {
		return "[Пустое сообщение]"
	}
	return m.Body
}

// ThreadMessages is the staff view of one thread.
type ThreadMessages struct {
	Thread   ThreadDetail `json:"thread"`
	Messages []Message    `json:"messages"`
}

// WidgetState is the customer's current thread, if any.
type WidgetState struct {
	Thread   *ThreadDetail `json:"thread"`
	Messages []Message     `json:"messages"`
	IsStaff  bool          `json:"is_staff"`
}

// SendResult is returned after a widget message was accepted.
type SendResult struct {
	Message  Message `json:"message"`
	ThreadID string  `json:"thread_id"`
}

// File is an upload attached to a message.
type File struct {
	Name    string
	Content io.Reader
}

// Reply is a staff answer to a thread.
type Reply struct {
	Message    string
	Attachment *File
}

// WidgetMessage is a customer message. Contact fields are only needed for
// the first message of a thread.
type WidgetMessage struct {
	ContactName  string
	ContactEmail string
	Message      string
	Attachment   *File
}

// ValidationError carries the per-field messages of a rejected form, in the
// order the backend sent them.
type ValidationError struct {
	Fields []FieldErrors
}

// FieldErrors are the messages for one form field.
type FieldErrors struct {
	Field    string
	Messages []string
}

func (e *ValidationError) Error() string {
	var all []string
	for _, f := range e.Fields {
		all = append(all, f.Messages...)
	}
	return strings.Join(all, " ")
}

// decodeValidationError reads {"errors":{field:[msg,...]}} keeping field
// order. It returns nil when data has no usable errors object.
func decodeValidationError(data []byte) *ValidationError {
	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(envelope.Errors))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	out := &ValidationError{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		field, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil
		}
		var msgs []string
		if err := json.Unmarshal(raw, &msgs); err != nil {
			var single string
			if json.Unmarshal(raw, &single) != nil {
				continue
			}
			msgs = []string{single}
		}
		out.Fields = append(out.Fields, FieldErrors{Field: field, Messages: msgs})
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return out
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("support: unexpected status %d", e.Code)
}
