package support

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeBackend struct {
	mu        sync.Mutex
	threads   []Thread
	details   map[string]ThreadDetail
	messages  map[string][]Message
	widget    *ThreadDetail
	failLists bool
	failState bool
	rejectMsg bool
	nextID    int64
	csrf      []string
	uploads   []string
	widgetIDs []string
	calls     map[string]int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{
		details:  map[string]ThreadDetail{},
		messages: map[string][]Message{},
		calls:    map[string]int{},
		nextID:   100,
	}
	r := chi.NewRouter()
	r.Get("/support/inbox/threads/", fb.listThreads)
	r.Get("/support/inbox/threads/{id}/messages/", fb.threadMessages)
	r.Post("/support/inbox/threads/{id}/send/", fb.staffSend)
	r.Post("/support/inbox/threads/{id}/close/", fb.closeThread)
	r.Get("/support/widget/state/", fb.widgetState)
	r.Post("/support/widget/send/", fb.widgetSend)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) addThread(id, name string, msgs ...Message) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.threads = append(fb.threads, Thread{ID: id, DisplayName: name, UpdatedAt: "08.03.2024 10:00"})
	fb.details[id] = ThreadDetail{ID: id, DisplayName: name, ContactEmail: name + "@example.com"}
	fb.messages[id] = msgs
}

func (fb *fakeBackend) count(name string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[name]
}

// with runs fn under the backend lock.
func (fb *fakeBackend) with(fn func()) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fn()
}

func (fb *fakeBackend) recorded(list *[]string) []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), (*list)...)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (fb *fakeBackend) listThreads(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.calls["threads"]++
	if fb.failLists {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	open := []Thread{}
	for _, th := range fb.threads {
		if !fb.details[th.ID].IsClosed {
			open = append(open, th)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": open})
}

func (fb *fakeBackend) threadMessages(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	id := chi.URLParam(r, "id")
	detail, ok := fb.details[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	msgs := fb.messages[id]
	if msgs == nil {
		msgs = []Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": detail, "messages": msgs})
}

func (fb *fakeBackend) readForm(r *http.Request) error {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return err
	}
	fb.csrf = append(fb.csrf, r.Header.Get("X-CSRFToken"))
	if file, header, err := r.FormFile("attachment"); err == nil {
		data, _ := io.ReadAll(file)
		fb.uploads = append(fb.uploads, header.Filename+":"+string(data))
	}
	return nil
}

func (fb *fakeBackend) staffSend(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if err := fb.readForm(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	body := r.FormValue("message")
	if body == "" || fb.rejectMsg {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string][]string{"message": {"Обязательное поле."}}})
		return
	}
	fb.nextID++
	msg := Message{ID: fb.nextID, Body: body, IsFromStaff: true, Author: "staff", CreatedAt: "08.03.2024 10:05"}
	fb.messages[id] = append(fb.messages[id], msg)
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (fb *fakeBackend) closeThread(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	_ = fb.readForm(r)
	id := chi.URLParam(r, "id")
	detail := fb.details[id]
	detail.IsClosed = true
	fb.details[id] = detail
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}

func (fb *fakeBackend) widgetState(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.calls["state"]++
	if fb.failState {
		http.Error(w, "boom", http.StatusBadGateway)
		return
	}
	if fb.widget == nil {
		writeJSON(w, http.StatusOK, map[string]any{"thread": nil, "messages": []Message{}, "is_staff": false})
		return
	}
	msgs := fb.messages[fb.widget.ID]
	if msgs == nil {
		msgs = []Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": fb.widget, "messages": msgs, "is_staff": false})
}

func (fb *fakeBackend) widgetSend(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if err := fb.readForm(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fb.widgetIDs = append(fb.widgetIDs, r.FormValue("thread_id"))
	if r.FormValue("message") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string][]string{"message": {"Обязательное поле."}}})
		return
	}
	if fb.widget == nil {
		fb.widget = &ThreadDetail{ID: "11111111-1111-1111-1111-111111111111", ContactName: r.FormValue("contact_name"), ContactEmail: r.FormValue("contact_email")}
	}
	fb.nextID++
	msg := Message{ID: fb.nextID, Body: r.FormValue("message"), CreatedAt: fmt.Sprintf("08.03.2024 10:%02d", fb.nextID%60)}
	fb.messages[fb.widget.ID] = append(fb.messages[fb.widget.ID], msg)
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "thread_id": fb.widget.ID})
}
