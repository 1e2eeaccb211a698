package support

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threadA = "aaaaaaaa-0000-0000-0000-000000000001"

func TestDefaultEndpoints(t *testing.T) {
	e := DefaultEndpoints("https://salon.example/")
	assert.Equal(t, "https://salon.example/support/inbox/threads/", e.ThreadsURL)
	assert.Equal(t, "https://salon.example/support/inbox/threads/"+PlaceholderID+"/messages/", e.MessagesURLTemplate)
	assert.Equal(t, "https://salon.example/support/widget/send/", e.WidgetSendURL)
	assert.Equal(t, Endpoints{}, DefaultEndpoints(" "))
}

func TestClientThreadsAndMessages(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна", Message{ID: 1, Body: "Здравствуйте", CreatedAt: "08.03.2024 09:00"})
	c := NewClient(DefaultEndpoints(srv.URL))

	threads, err := c.Threads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Анна", threads[0].DisplayName)

	data, err := c.Messages(context.Background(), threadA)
	require.NoError(t, err)
	assert.Equal(t, "Анна@example.com", data.Thread.ContactEmail)
	require.Len(t, data.Messages, 1)
	assert.Equal(t, "Здравствуйте", data.Messages[0].Text())
}

func TestClientReplySendsCSRFAndAttachment(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна")
	c := NewClient(DefaultEndpoints(srv.URL), WithCSRFToken("tok"))

	msg, err := c.Reply(context.Background(), threadA, Reply{
		Message:    "Добрый день",
		Attachment: &File{Name: "photo.jpg", Content: strings.NewReader("jpeg")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Добрый день", msg.Body)
	assert.True(t, msg.IsFromStaff)
	assert.Equal(t, []string{"tok"}, fb.recorded(&fb.csrf))
	assert.Equal(t, []string{"photo.jpg:jpeg"}, fb.recorded(&fb.uploads))
}

func TestClientUsesCSRFCookie(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна")
	c := NewClient(DefaultEndpoints(srv.URL), WithCookie("csrftoken", "from-cookie"))

	_, err := c.Reply(context.Background(), threadA, Reply{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"from-cookie"}, fb.recorded(&fb.csrf))
}

func TestClientValidationError(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна")
	c := NewClient(DefaultEndpoints(srv.URL))

	_, err := c.Reply(context.Background(), threadA, Reply{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Обязательное поле.", verr.Error())
	assert.Equal(t, "message", verr.Fields[0].Field)
}

func TestClientStatusError(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.failLists = true
	c := NewClient(DefaultEndpoints(srv.URL))

	_, err := c.Threads(context.Background())
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusInternalServerError, serr.Code)
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient(Endpoints{})
	_, err := c.Threads(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.WidgetSend(context.Background(), "", WidgetMessage{Message: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.Close(context.Background(), threadA), ErrNotConfigured)
}

func TestClientRequiresThreadID(t *testing.T) {
	_, srv := newFakeBackend(t)
	c := NewClient(DefaultEndpoints(srv.URL))
	_, err := c.Messages(context.Background(), "")
	assert.Error(t, err)
}

func TestDecodeValidationErrorKeepsOrder(t *testing.T) {
	verr := decodeValidationError([]byte(`{"errors":{"contact_email":["Введите правильный адрес."],"message":["Обязательное поле.","Слишком коротко."],"__all__":"one"}}`))
	require.NotNil(t, verr)
	assert.Equal(t, "Введите правильный адрес. Обязательное поле. Слишком коротко. one", verr.Error())

	assert.Nil(t, decodeValidationError([]byte(`{"detail":"nope"}`)))
	assert.Nil(t, decodeValidationError([]byte(`not json`)))
	assert.Nil(t, decodeValidationError([]byte(`{"errors":{}}`)))
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "[Пустое сообщение]", Message{}.Text())
	assert.Equal(t, "", Message{Attachment: &Attachment{URL: "/m/1.jpg"}}.Text())
}

func TestClientDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(Endpoints{WidgetStateURL: srv.URL}).WidgetState(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "support: decode response")
}
