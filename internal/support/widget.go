package support

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

const (
	ErrTextWidgetLoad = "Не удалось загрузить чат. Попробуйте обновить страницу."
	ErrTextWidgetSend = "Не удалось отправить сообщение. Попробуйте позже."
	TextThreadClosed  = "Диалог закрыт. Создайте новое обращение, чтобы продолжить."
	TitleNewThread    = "Онлайн-поддержка"
	TitleThread       = "Чат с поддержкой"
	HintNewThread     = "Напишите нам, и мы ответим."
	HintEmptyThread   = "Диалог пока пуст."

	defaultPollEvery = 5 * time.Second
)

// WidgetSnapshot is what the customer chat widget shows.
type WidgetSnapshot struct {
	Open     bool
	ThreadID string
	Title    string
	Messages []Message
	// Hint replaces the message list when there is nothing to show.
	Hint string
	// Closed disables the message inputs.
	Closed         bool
	ShowNameField  bool
	ShowEmailField bool
	Error          string
	IsStaff        bool
}

// Widget is the customer-facing chat.
type Widget struct {
	client   *Client
	logger   *logging.Logger
	metrics  Recorder
	interval time.Duration
	observer func(WidgetSnapshot)

	mu    sync.Mutex
	state WidgetSnapshot
}

// NewWidget creates a closed Widget.
func NewWidget(client *Client, logger *logging.Logger) *Widget {
	if logger == nil {
		logger = logging.Default()
	}
	return &Widget{
		client:   client,
		logger:   logger,
		metrics:  noopRecorder{},
		interval: defaultPollEvery,
		state: WidgetSnapshot{
			Title:          TitleNewThread,
			ShowNameField:  true,
			ShowEmailField: true,
		},
	}
}

// WithInterval sets the poll interval.
func (w *Widget) WithInterval(d time.Duration) *Widget {
	if d > 0 {
		w.interval = d
	}
	return w
}

// WithMetrics sets the poll recorder.
func (w *Widget) WithMetrics(rec Recorder) *Widget {
	if rec != nil {
		w.metrics = rec
	}
	return w
}

// WithObserver registers fn to receive a snapshot after every change.
func (w *Widget) WithObserver(fn func(WidgetSnapshot)) *Widget {
	w.observer = fn
	return w
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() WidgetSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copyLocked()
}

// Toggle opens or closes the widget. Opening reloads the state.
func (w *Widget) Toggle(ctx context.Context) (bool, error) {
	var open bool
	w.update(func(s *WidgetSnapshot) {
		s.Open = !s.Open
		open = s.Open
	})
	if !open {
		return false, nil
	}
	return true, w.Load(ctx)
}

// Load fetches the customer's thread and rebuilds the view from it.
func (w *Widget) Load(ctx context.Context) error {
	state, err := w.client.WidgetState(ctx)
	if err != nil {
		w.update(func(s *WidgetSnapshot) { s.Error = ErrTextWidgetLoad })
		w.logger.Warn("support: widget load failed", "error", err)
		return err
	}
	w.update(func(s *WidgetSnapshot) {
		s.IsStaff = state.IsStaff
		if state.Thread == nil {
			s.ThreadID = ""
			s.Title = TitleNewThread
			s.Messages = nil
			s.Hint = HintNewThread
			s.Closed = false
			s.Error = ""
			s.ShowNameField = true
			s.ShowEmailField = true
			return
		}
		s.ThreadID = state.Thread.ID
		s.Title = TitleThread
		applyMessages(s, state.Messages)
		if state.Thread.IsClosed {
			s.Closed = true
			s.Error = TextThreadClosed
		} else {
			s.Closed = false
			s.Error = ""
		}
		if state.Thread.ContactName != "" {
			s.ShowNameField = false
		}
		if state.Thread.ContactEmail != "" {
			s.ShowEmailField = false
		}
	})
	return nil
}

// Poll refreshes the messages of an open widget. A closed widget, a failed
// request or a missing thread leave the view alone.
func (w *Widget) Poll(ctx context.Context) error {
	if !w.Snapshot().Open {
		return nil
	}
	state, err := w.client.WidgetState(ctx)
	if err != nil {
		w.logger.Debug("support: widget poll failed", "error", err)
		return err
	}
	if state.Thread == nil {
		return nil
	}
	w.update(func(s *WidgetSnapshot) {
		applyMessages(s, state.Messages)
		if state.Thread.IsClosed {
			s.Closed = true
			s.Error = TextThreadClosed
			return
		}
		s.Closed = false
		if strings.Contains(s.Error, "Диалог закрыт") {
			s.Error = ""
		}
	})
	return nil
}

// Send posts a message, attaching the current thread id when there is one.
// On success the contact fields are hidden and the message is appended.
func (w *Widget) Send(ctx context.Context, msg WidgetMessage) error {
	var threadID string
	w.update(func(s *WidgetSnapshot) {
		s.Error = ""
		threadID = s.ThreadID
	})

	result, err := w.client.WidgetSend(ctx, threadID, msg)
	if err != nil {
		text := ErrTextWidgetSend
		var verr *ValidationError
		if errors.As(err, &verr) {
			text = verr.Error()
		}
		w.update(func(s *WidgetSnapshot) { s.Error = text })
		return err
	}
	w.update(func(s *WidgetSnapshot) {
		if result.ThreadID != "" {
			s.ThreadID = result.ThreadID
		}
		s.ShowNameField = false
		s.ShowEmailField = false
		s.Hint = ""
		s.Messages = append(s.Messages, result.Message)
	})
	return nil
}

// Run loads the state once, then polls every interval, measured from the
// end of the previous poll, until ctx is done. It returns
// ErrNotConfigured right away when the backend has no widget endpoint.
func (w *Widget) Run(ctx context.Context) error {
	if err := w.Load(ctx); errors.Is(err, ErrNotConfigured) {
		return err
	}
	timer := time.NewTimer(w.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if w.Snapshot().Open {
			w.metrics.ObservePoll("widget", outcome(w.Poll(ctx)))
		} else {
			w.metrics.ObservePoll("widget", "skipped")
		}
		timer.Reset(w.interval)
	}
}

func applyMessages(s *WidgetSnapshot, messages []Message) {
	s.Messages = append([]Message(nil), messages...)
	if len(messages) == 0 {
		s.Hint = HintEmptyThread
	} else {
		s.Hint = ""
	}
}

func (w *Widget) update(fn func(*WidgetSnapshot)) {
	w.mu.Lock()
	fn(&w.state)
	snap := w.copyLocked()
	w.mu.Unlock()
	if w.observer != nil {
		w.observer(snap)
	}
}

func (w *Widget) copyLocked() WidgetSnapshot {
	s := w.state
	s.Messages = append([]Message(nil), w.state.Messages...)
	return s
}
