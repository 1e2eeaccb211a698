package support

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (p *pollRecorder) ObservePoll(component, outcome string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outcomes == nil {
		p.outcomes = map[string][]string{}
	}
	p.outcomes[component] = append(p.outcomes[component], outcome)
}

func (p *pollRecorder) get(component string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.outcomes[component]...)
}

const threadB = "bbbbbbbb-0000-0000-0000-000000000002"

func TestInboxRefreshAndSelect(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна", Message{ID: 1, Body: "Привет"})
	fb.addThread(threadB, "Борис")
	inbox := NewInbox(NewClient(DefaultEndpoints(srv.URL)), nil)

	require.NoError(t, inbox.Refresh(context.Background()))
	assert.Len(t, inbox.Snapshot().Threads, 2)

	require.NoError(t, inbox.Select(context.Background(), threadA))
	snap := inbox.Snapshot()
	assert.Equal(t, threadA, snap.ActiveThreadID)
	require.NotNil(t, snap.Thread)
	assert.Equal(t, "Анна", snap.Thread.DisplayName)
	assert.Len(t, snap.Messages, 1)
}

func TestInboxRefreshFailureShowsError(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна")
	inbox := NewInbox(NewClient(DefaultEndpoints(srv.URL)), nil)
	require.NoError(t, inbox.Refresh(context.Background()))

	fb.with(func() { fb.failLists = true })
	assert.Error(t, inbox.Refresh(context.Background()))
	snap := inbox.Snapshot()
	assert.Equal(t, ErrTextThreads, snap.ListError)
	assert.Empty(t, snap.Threads)

	fb.with(func() { fb.failLists = false })
	require.NoError(t, inbox.Refresh(context.Background()))
	assert.Empty(t, inbox.Snapshot().ListError)
}

func TestInboxSelectUnknownThread(t *testing.T) {
	_, srv := newFakeBackend(t)
	inbox := NewInbox(NewClient(DefaultEndpoints(srv.URL)), nil)

	assert.Error(t, inbox.Select(context.Background(), threadB))
	assert.Equal(t, ErrTextMessages, inbox.Snapshot().MessagesError)
}

func TestInboxReplyReselects(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна", Message{ID: 1, Body: "Привет"})
	inbox := NewInbox(NewClient(DefaultEndpoints(srv.URL)), nil)

	assert.ErrorIs(t, inbox.Reply(context.Background(), Reply{Message: "x"}), ErrNoActiveThread)

	require.NoError(t, inbox.Select(context.Background(), threadA))
	require.NoError(t, inbox.Reply(context.Background(), Reply{Message: "Ответ"}))

	snap := inbox.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "Ответ", snap.Messages[1].Body)
}

func TestInboxReplyErrorsAppendNotices(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна")
	inbox := NewInbox(NewClient(DefaultEndpoints(srv.URL)), nil)
	require.NoError(t, inbox.Select(context.Background(), threadA))

	assert.Error(t, inbox.Reply(context.Background(), Reply{}))
	srv.Close()
	assert.Error(t, inbox.Reply(context.Background(), Reply{Message: "x"}))

	assert.Equal(t, []string{"Обязательное поле.", ErrTextReply}, inbox.Snapshot().Notices)
}

func TestInboxClose(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.addThread(threadA, "Анна")
	fb.addThread(threadB, "Борис")
	inbox := NewInbox(NewClient(DefaultEndpoints(srv.URL)), nil)
	require.NoError(t, inbox.Select(context.Background(), threadA))

	require.NoError(t, inbox.Close(context.Background()))

	snap := inbox.Snapshot()
	assert.True(t, snap.Thread.IsClosed)
	require.Len(t, snap.Threads, 1)
	assert.Equal(t, threadB, snap.Threads[0].ID)
}

func TestInboxRunPollsUntilCanceled(t *testing.T) {
	fb, srv := newFakeBackend(t)
	rec := &pollRecorder{}
	var mu sync.Mutex
	snapshots := 0
	inbox := NewInbox(NewClient(DefaultEndpoints(srv.URL)), nil).
		WithInterval(10 * time.Millisecond).
		WithMetrics(rec).
		WithObserver(func(InboxSnapshot) {
			mu.Lock()
			snapshots++
			mu.Unlock()
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx) }()

	assert.Eventually(t, func() bool { return fb.count("threads") >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, rec.get("inbox"), "ok")
	mu.Lock()
	assert.GreaterOrEqual(t, snapshots, 3)
	mu.Unlock()
}

func TestInboxRunWithoutEndpoint(t *testing.T) {
	inbox := NewInbox(NewClient(Endpoints{}), nil)
	assert.ErrorIs(t, inbox.Run(context.Background()), ErrNotConfigured)
}
