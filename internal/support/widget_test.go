package support

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidgetToggleLoadsEmptyState(t *testing.T) {
	fb, srv := newFakeBackend(t)
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)

	open, err := w.Toggle(context.Background())
	require.NoError(t, err)
	assert.True(t, open)

	snap := w.Snapshot()
	assert.Equal(t, TitleNewThread, snap.Title)
	assert.Equal(t, HintNewThread, snap.Hint)
	assert.True(t, snap.ShowNameField)
	assert.True(t, snap.ShowEmailField)
	assert.Empty(t, snap.ThreadID)
	assert.Equal(t, 1, fb.count("state"))

	open, err = w.Toggle(context.Background())
	require.NoError(t, err)
	assert.False(t, open)
	assert.Equal(t, 1, fb.count("state"))
}

func TestWidgetSendCreatesThreadThenReusesIt(t *testing.T) {
	fb, srv := newFakeBackend(t)
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)
	_, err := w.Toggle(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.Send(context.Background(), WidgetMessage{ContactName: "Лола", ContactEmail: "lola@example.com", Message: "Здравствуйте"}))
	require.NoError(t, w.Send(context.Background(), WidgetMessage{Message: "Есть окно на завтра?"}))

	snap := w.Snapshot()
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", snap.ThreadID)
	assert.False(t, snap.ShowNameField)
	assert.False(t, snap.ShowEmailField)
	assert.Empty(t, snap.Hint)
	assert.Len(t, snap.Messages, 2)
	assert.Equal(t, []string{"", "11111111-1111-1111-1111-111111111111"}, fb.recorded(&fb.widgetIDs))
}

func TestWidgetSendErrors(t *testing.T) {
	_, srv := newFakeBackend(t)
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)

	assert.Error(t, w.Send(context.Background(), WidgetMessage{}))
	assert.Equal(t, "Обязательное поле.", w.Snapshot().Error)

	srv.Close()
	assert.Error(t, w.Send(context.Background(), WidgetMessage{Message: "x"}))
	assert.Equal(t, ErrTextWidgetSend, w.Snapshot().Error)
}

func TestWidgetLoadExistingClosedThread(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.widget = &ThreadDetail{ID: threadA, ContactName: "Лола", IsClosed: true}
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)

	require.NoError(t, w.Load(context.Background()))

	snap := w.Snapshot()
	assert.Equal(t, TitleThread, snap.Title)
	assert.Equal(t, HintEmptyThread, snap.Hint)
	assert.True(t, snap.Closed)
	assert.Equal(t, TextThreadClosed, snap.Error)
	assert.False(t, snap.ShowNameField)
	assert.True(t, snap.ShowEmailField)
}

func TestWidgetLoadFailure(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.failState = true
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)

	assert.Error(t, w.Load(context.Background()))
	assert.Equal(t, ErrTextWidgetLoad, w.Snapshot().Error)
}

func TestWidgetPollSkipsWhileClosed(t *testing.T) {
	fb, srv := newFakeBackend(t)
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)

	require.NoError(t, w.Poll(context.Background()))
	assert.Zero(t, fb.count("state"))
}

func TestWidgetPollReopensThread(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.widget = &ThreadDetail{ID: threadA, IsClosed: true}
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)
	_, err := w.Toggle(context.Background())
	require.NoError(t, err)
	require.True(t, w.Snapshot().Closed)

	fb.with(func() {
		fb.widget.IsClosed = false
		fb.messages[threadA] = []Message{{ID: 5, Body: "Мы снова на связи", IsFromStaff: true}}
	})

	require.NoError(t, w.Poll(context.Background()))
	snap := w.Snapshot()
	assert.False(t, snap.Closed)
	assert.Empty(t, snap.Error)
	assert.Len(t, snap.Messages, 1)
}

func TestWidgetPollKeepsViewWhenNoThread(t *testing.T) {
	_, srv := newFakeBackend(t)
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil)
	_, err := w.Toggle(context.Background())
	require.NoError(t, err)
	before := w.Snapshot()

	require.NoError(t, w.Poll(context.Background()))
	assert.Equal(t, before, w.Snapshot())
}

func TestWidgetRunPollsOnlyWhenOpen(t *testing.T) {
	fb, srv := newFakeBackend(t)
	rec := &pollRecorder{}
	w := NewWidget(NewClient(DefaultEndpoints(srv.URL)), nil).
		WithInterval(10 * time.Millisecond).
		WithMetrics(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(rec.get("widget")) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fb.count("state"))

	_, err := w.Toggle(ctx)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return fb.count("state") >= 4 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, rec.get("widget"), "skipped")
	assert.Contains(t, rec.get("widget"), "ok")
}
