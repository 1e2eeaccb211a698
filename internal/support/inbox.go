package support

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

const (
	ErrTextThreads      = "Не удалось загрузить обращения"
	ErrTextMessages     = "Не удалось загрузить сообщения."
	ErrTextReply        = "Не удалось отправить сообщение."
	TextNoThreads       = "Нет открытых обращений"
	TextNoMessages      = "Сообщений пока нет."
	TextNoLastMessage   = "Нет сообщений"
	defaultRefreshEvery = 10 * time.Second
)

// ErrNoActiveThread is returned by Inbox operations that need a selected
// thread.
var ErrNoActiveThread = errors.New("support: no thread selected")

// Recorder receives poll outcomes for metrics.
type Recorder interface {
	ObservePoll(component, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObservePoll(string, string) {}

// InboxSnapshot is what the staff inbox shows.
type InboxSnapshot struct {
	Threads        []Thread
	ListError      string
	ActiveThreadID string
	Thread         *ThreadDetail
	Messages       []Message
	MessagesError  string
	// Notices are reply failures appended below the messages until the
	// thread is reloaded.
	Notices []string
}

// Inbox is the staff view over all open threads.
type Inbox struct {
	client   *Client
	logger   *logging.Logger
	metrics  Recorder
	interval time.Duration
	observer func(InboxSnapshot)

	mu    sync.Mutex
	state InboxSnapshot
}

// NewInbox creates an Inbox.
func NewInbox(client *Client, logger *logging.Logger) *Inbox {
	if logger == nil {
		logger = logging.Default()
	}
	return &Inbox{
		client:   client,
		logger:   logger,
		metrics:  noopRecorder{},
		interval: defaultRefreshEvery,
	}
}

// WithInterval sets how often Run refreshes the thread list.
func (i *Inbox) WithInterval(d time.Duration) *Inbox {
	if d > 0 {
		i.interval = d
	}
	return i
}

// WithMetrics sets the poll recorder.
func (i *Inbox) WithMetrics(rec Recorder) *Inbox {
	if rec != nil {
		i.metrics = rec
	}
	return i
}

// WithObserver registers fn to receive a snapshot after every change.
func (i *Inbox) WithObserver(fn func(InboxSnapshot)) *Inbox {
	i.observer = fn
	return i
}

// Snapshot returns a copy of the current state.
func (i *Inbox) Snapshot() InboxSnapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.copyLocked()
}

// Refresh reloads the thread list. On failure the list is replaced by an
// error line.
func (i *Inbox) Refresh(ctx context.Context) error {
	threads, err := i.client.Threads(ctx)
	i.update(func(s *InboxSnapshot) {
		if err != nil {
			s.Threads = nil
			s.ListError = ErrTextThreads
			return
		}
		s.Threads = threads
		s.ListError = ""
	})
	if err != nil {
		i.logger.Warn("support: refresh threads failed", "error", err)
		return err
	}
	return nil
}

// Select makes threadID active and loads its messages.
func (i *Inbox) Select(ctx context.Context, threadID string) error {
	i.update(func(s *InboxSnapshot) { s.ActiveThreadID = threadID })

	data, err := i.client.Messages(ctx, threadID)
	i.update(func(s *InboxSnapshot) {
		if err != nil {
			s.Messages = nil
			s.MessagesError = ErrTextMessages
			s.Notices = nil
			return
		}
		thread := data.Thread
		s.Thread = &thread
		s.Messages = data.Messages
		s.MessagesError = ""
		s.Notices = nil
	})
	if err != nil {
		i.logger.Warn("support: load messages failed", "thread_id", threadID, "error", err)
		return err
	}
	return nil
}

// Reply answers the active thread and reloads it. Failures are appended
// to Notices.
func (i *Inbox) Reply(ctx context.Context, reply Reply) error {
	threadID := i.Snapshot().ActiveThreadID
	if threadID == "" {
		return ErrNoActiveThread
	}
	if _, err := i.client.Reply(ctx, threadID, reply); err != nil {
		notice := ErrTextReply
		var verr *ValidationError
		if errors.As(err, &verr) {
			notice = verr.Error()
		}
		i.update(func(s *InboxSnapshot) { s.Notices = append(s.Notices, notice) })
		return err
	}
	return i.Select(ctx, threadID)
}

// Close closes the active thread and refreshes the list.
func (i *Inbox) Close(ctx context.Context) error {
	threadID := i.Snapshot().ActiveThreadID
	if threadID == "" {
		return ErrNoActiveThread
	}
	if err := i.client.Close(ctx, threadID); err != nil {
		i.update(func(s *InboxSnapshot) { s.Notices = append(s.Notices, ErrTextReply) })
		return err
	}
	i.update(func(s *InboxSnapshot) {
		if s.Thread != nil && s.Thread.ID == threadID {
			s.Thread.IsClosed = true
		}
	})
	return i.Refresh(ctx)
}

// Run refreshes the thread list now and then every interval, measured from
// the end of the previous refresh, until ctx is done. It returns
// ErrNotConfigured right away when the backend has no threads endpoint.
func (i *Inbox) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		err := i.Refresh(ctx)
		if errors.Is(err, ErrNotConfigured) {
			return err
		}
		i.metrics.ObservePoll("inbox", outcome(err))
		timer.Reset(i.interval)
	}
}

func (i *Inbox) update(fn func(*InboxSnapshot)) {
	i.mu.Lock()
	fn(&i.state)
	snap := i.copyLocked()
	i.mu.Unlock()
	if i.observer != nil {
		i.observer(snap)
	}
}

func (i *Inbox) copyLocked() InboxSnapshot {
	s := i.state
	s.Threads = append([]Thread(nil), i.state.Threads...)
	s.Messages = append([]Message(nil), i.state.Messages...)
	s.Notices = append([]string(nil), i.state.Notices...)
	if i.state.Thread != nil {
		thread := *i.state.Thread
		s.Thread = &thread
	}
	return s
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
